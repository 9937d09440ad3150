package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/internal/metrics"
	"rate-cache-service/internal/service"
	"rate-cache-service/pkg/logger"
)

var errMissingPair = errors.New("missing required parameters: from and to")

// statusClientClosedRequest is the non-standard status logged when the client
// went away before the rate was resolved.
const statusClientClosedRequest = 499

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type quoteResponse struct {
	Pair model.PairKey `json:"pair"`
	Rate float64       `json:"rate"`
}

type Handler struct {
	service ports.ExchangeService
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewHandler(service ports.ExchangeService, log *logger.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		log:     log,
		metrics: metrics,
	}
}

// parsePair requires both parameters to be present. Empty values are passed
// through; they resolve under the key "_".
func parsePair(r *http.Request) (model.Currency, model.Currency, error) {
	query := r.URL.Query()
	if !query.Has("from") || !query.Has("to") {
		return "", "", errMissingPair
	}
	return model.Currency(query.Get("from")), model.Currency(query.Get("to")), nil
}

func (h *Handler) GetRateHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.RateRequestsTotal.Inc()

	from, to, err := parsePair(r)
	if err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rate, err := h.service.GetRate(r.Context(), from, to)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendSuccessResponse(w, rate)
}

func (h *Handler) FetchQuoteHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.QuoteRequestsTotal.Inc()

	from, to, err := parsePair(r)
	if err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rate, err := h.service.FetchQuote(r.Context(), from, to)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendSuccessResponse(w, quoteResponse{Pair: model.NewPairKey(from, to), Rate: rate})
}

func (h *Handler) ConvertHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.ConversionRequestsTotal.Inc()

	from, to, err := parsePair(r)
	if err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	amount := 1.0
	if amountStr := r.URL.Query().Get("amount"); amountStr != "" {
		amount, err = strconv.ParseFloat(amountStr, 64)
		if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
			h.sendErrorResponse(w, http.StatusBadRequest, "invalid amount parameter")
			return
		}
	}

	result, err := h.service.ConvertAmount(r.Context(), amount, from, to)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendSuccessResponse(w, result)
}

func (h *Handler) sendSuccessResponse(w http.ResponseWriter, data interface{}) {
	response := Response{
		Success: true,
		Data:    data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := Response{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode error response", "error", err)
	}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorMessage := "internal server error"

	switch {
	case errors.Is(err, service.ErrNoDataAvailable):
		statusCode = http.StatusServiceUnavailable
		errorMessage = "exchange rate not available"
	case errors.Is(err, service.ErrRemoteFetch):
		statusCode = http.StatusBadGateway
		errorMessage = "external API failure"
	case errors.Is(err, context.Canceled):
		statusCode = statusClientClosedRequest
		errorMessage = "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusGatewayTimeout
		errorMessage = "request timed out"
	}

	if statusCode == statusClientClosedRequest || statusCode == http.StatusGatewayTimeout {
		h.log.Warn("Request ended before the rate was resolved", "error", err, "status_code", statusCode)
	} else {
		h.log.Error("Service error", "error", err, "status_code", statusCode)
	}
	h.sendErrorResponse(w, statusCode, errorMessage)
}
