package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cast"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/pkg/logger"
)

var (
	ErrRateNotFound = errors.New("rate not found in response")
	ErrAPIFailure   = errors.New("API reported failure")
)

// maxBodySize caps how much of a quote response is read.
const maxBodySize = 1 << 20

// QuoteAPI fetches single-pair quotes with GET <endpoint><FROM>_<TO>.
type QuoteAPI struct {
	mutex      sync.RWMutex
	endpoint   string
	httpClient *http.Client
	log        *logger.Logger
}

func NewQuoteAPI(endpoint string, timeout time.Duration, log *logger.Logger) *QuoteAPI {
	return &QuoteAPI{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (q *QuoteAPI) SetEndpoint(endpoint string) {
	q.mutex.Lock()
	q.endpoint = endpoint
	q.mutex.Unlock()
}

func (q *QuoteAPI) Endpoint() string {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.endpoint
}

// FetchRate requests the quote for pair. The body must be a JSON object with
// the rate under the pair key ({"USD_EUR": 0.92}) or under "rate". Numeric
// strings are accepted.
func (q *QuoteAPI) FetchRate(ctx context.Context, pair model.PairKey) (float64, error) {
	url := q.Endpoint() + pair.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	q.log.Debug("Requesting quote", "pair", pair, "url", url)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API returned non-OK status: %d", resp.StatusCode)
	}

	return extractRate(body, pair)
}

func extractRate(body []byte, pair model.PairKey) (float64, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	raw, ok := payload[pair.String()]
	if !ok {
		raw, ok = payload["rate"]
	}
	if !ok {
		if msg, hasErr := payload["error"]; hasErr {
			return 0, fmt.Errorf("%w: %v", ErrAPIFailure, msg)
		}
		return 0, fmt.Errorf("%w: %s", ErrRateNotFound, pair)
	}

	rate, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("bad rate value for %s: %w", pair, err)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("bad rate value for %s: %v", pair, rate)
	}
	return rate, nil
}
