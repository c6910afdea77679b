package discovery

import "strings"

// etfBlacklist keeps index and sector vehicles out of the discovery loop.
// They trade on flows the single-name producers misread as unusual, and the
// watchlist already carries the ones worth scoring.
var etfBlacklist = map[string]struct{}{
	// Broad index.
	"SPY": {}, "QQQ": {}, "IWM": {}, "DIA": {}, "VTI": {}, "VOO": {}, "RSP": {},
	// Sector SPDRs.
	"XLB": {}, "XLC": {}, "XLE": {}, "XLF": {}, "XLI": {}, "XLK": {},
	"XLP": {}, "XLRE": {}, "XLU": {}, "XLV": {}, "XLY": {},
	// Leveraged and volatility products.
	"TQQQ": {}, "SQQQ": {}, "SPXL": {}, "SPXS": {}, "SOXL": {}, "SOXS": {},
	"UVXY": {}, "VXX": {}, "SVXY": {},
	// Common thematic and asset-class funds.
	"SMH": {}, "ARKK": {}, "XBI": {}, "KRE": {}, "GDX": {},
	"GLD": {}, "SLV": {}, "USO": {}, "TLT": {}, "HYG": {}, "LQD": {},
	"EEM": {}, "EFA": {}, "FXI": {},
}

// blacklistedETF reports whether ticker is an index or sector vehicle the
// producers must never surface.
func blacklistedETF(ticker string) bool {
	_, ok := etfBlacklist[strings.ToUpper(strings.TrimSpace(ticker))]
	return ok
}
