package loyalty

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const partialMatchRatio = 0.7

// MatchItems finds catalog items mentioned in OCR text. An item matches when
// its full name appears in the text, or when enough of its longer words do.
// Results follow catalog order without duplicates.
func MatchItems(text string) []string {
	found := []string{}
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return found
	}

	seen := make(map[string]struct{})
	for _, item := range menuItems {
		if _, ok := seen[item.Name]; ok {
			continue
		}
		if matchesItem(lower, strings.ToLower(item.Name)) {
			seen[item.Name] = struct{}{}
			found = append(found, item.Name)
		}
	}
	return found
}

func matchesItem(text, name string) bool {
	if strings.Contains(text, name) {
		return true
	}

	words := strings.Split(name, " ")
	matched := 0
	for _, w := range words {
		if len(w) > 3 && strings.Contains(text, w) {
			matched++
		}
	}
	return matched > 0 && float64(matched)/float64(len(words)) >= partialMatchRatio
}

// BillHash fingerprints receipt text. Case and whitespace differences do not
// change the result.
func BillHash(scannedText string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(scannedText)), " ")
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
