package shopify

import "strings"

// NormalizePhone converts a Japanese mobile number to E.164. Shopify stores
// customer phones in international form, so lookups and SMS sends must agree
// on this shape.
func NormalizePhone(raw string) string {
	normalized := strings.NewReplacer(" ", "", "-", "").Replace(raw)

	switch {
	case strings.HasPrefix(normalized, "0"):
		return "+81" + normalized[1:]
	case strings.HasPrefix(normalized, "+"):
		return normalized
	default:
		return "+81" + normalized
	}
}
