package model

import "strings"

type Currency string

func (c Currency) String() string {
	return string(c)
}

// PairKey identifies a (from, to) currency pair, e.g. "USD_EUR".
type PairKey string

// pairSeparator joins the two codes both in cache keys and in the outbound quote URL.
const pairSeparator = "_"

// NewPairKey builds the key for a pair. Codes are used verbatim; empty codes
// yield the degenerate key "_".
func NewPairKey(from, to Currency) PairKey {
	return PairKey(string(from) + pairSeparator + string(to))
}

// Split returns the currencies a key was built from. Keys without a separator
// are returned as the from currency.
func (k PairKey) Split() (from, to Currency) {
	f, t, _ := strings.Cut(string(k), pairSeparator)
	return Currency(f), Currency(t)
}

func (k PairKey) String() string {
	return string(k)
}
