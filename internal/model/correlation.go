package model

import "time"

// CorrelationEntry is a stored coefficient for an unordered symbol pair.
// SymbolA sorts before SymbolB.
type CorrelationEntry struct {
	SymbolA     string    `json:"symbol_a"`
	SymbolB     string    `json:"symbol_b"`
	Coefficient float64   `json:"coefficient"`
	SampleSize  int       `json:"sample_size"`
	RunID       string    `json:"run_id"`
	ComputedAt  time.Time `json:"computed_at"`
}

// CanonicalPair orders two symbols lexicographically.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Peer returns the other symbol of the pair.
func (e CorrelationEntry) Peer(symbol string) string {
	if e.SymbolA == symbol {
		return e.SymbolB
	}
	return e.SymbolA
}
