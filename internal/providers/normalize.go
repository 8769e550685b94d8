package providers

import "strings"

// exchangeSuffix derives the FullSymbol suffix spec.md §4.1 requires every
// adapter to attach at the boundary: CN codes starting with 6 or 9 trade on
// the Shanghai exchange, 0/2/3 on Shenzhen, 8/4 on Beijing.
func exchangeSuffix(code string) string {
	if len(code) == 0 {
		return ""
	}
	switch code[0] {
	case '6', '9':
		return ".SS"
	case '0', '2', '3':
		return ".SZ"
	case '8', '4':
		return ".BJ"
	default:
		return ""
	}
}

// padCode zero-pads a bare numeric CN symbol to the canonical 6 characters.
func padCode(code string) string {
	code = strings.TrimSpace(code)
	for len(code) < 6 && isAllDigits(code) {
		code = "0" + code
	}
	return code
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// pctToFraction converts a vendor-reported percentage (e.g. 2.35 meaning
// 2.35%) into the fractional form (0.0235) the rest of the system stores,
// per spec.md §4.1's unit-normalization requirement.
func pctToFraction(pct float64) float64 {
	return pct / 100.0
}

// yuan100MToYuan converts a CN valuation field reported in 100M-yuan units
// into plain yuan.
func yuan100MToYuan(v float64) float64 {
	return v * 1e8
}
