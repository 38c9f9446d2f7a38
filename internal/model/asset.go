package model

// AssetClass groups instruments that share pricing endpoints and heuristics.
type AssetClass string

const (
	AssetForex   AssetClass = "forex"
	AssetStock   AssetClass = "stock"
	AssetCrypto  AssetClass = "crypto"
	AssetUnknown AssetClass = "unknown"
)

// IsEquity reports whether news sentiment applies to the class.
func (a AssetClass) IsEquity() bool { return a == AssetStock }
