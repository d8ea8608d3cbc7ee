package util

import "strings"

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ResolveAlias maps a normalized symbol through aliases, returning the symbol itself when unmapped.
func ResolveAlias(symbol string, aliases map[string]string) string {
	s := NormalizeSymbol(symbol)
	if real, ok := aliases[s]; ok && real != "" {
		return NormalizeSymbol(real)
	}
	return s
}
