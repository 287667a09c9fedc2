// Package normalizer cleans merchant names as printed on card statements and
// stores the user's merchant corrections.
package normalizer

import (
	"regexp"
	"strings"
)

// MerchantInfo contains normalized merchant information
type MerchantInfo struct {
	OriginalName   string `json:"original_name"`
	NormalizedName string `json:"normalized_name"`
	Key            string `json:"key"`                // uppercase lookup key without store numbers
	Category       string `json:"category,omitempty"` // hint only, never assigned directly
}

// MerchantPattern maps a known chain to its display name.
type MerchantPattern struct {
	Pattern  *regexp.Regexp
	Name     string
	Category string
}

// MerchantSanitizer normalizes merchant names.
type MerchantSanitizer struct {
	patterns []MerchantPattern
}

// NewMerchantSanitizer creates a sanitizer with the built-in Canadian chains.
func NewMerchantSanitizer() *MerchantSanitizer {
	return &MerchantSanitizer{
		patterns: defaultMerchantPatterns(),
	}
}

var (
	processorPrefix = regexp.MustCompile(`^(?:SQ\s?\*|TST\s?\*|SP\s?\*|PP\s?\*|PAYPAL\s?\*|IC\s?\*|FS\s?\*)\s*`)
	storeNumber     = regexp.MustCompile(`\s*#\s?\d+`)
	trailingRef     = regexp.MustCompile(`\s+\d{3,}$`)
	trailingDate    = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}/?$`)
	provinceSuffix  = regexp.MustCompile(`\s+(?:AB|BC|MB|NB|NL|NS|NT|NU|ON|PE|QC|SK|YT)(?:\s+CA)?$`)
	spaces          = regexp.MustCompile(`\s+`)
)

// Sanitize normalizes a merchant name.
func (s *MerchantSanitizer) Sanitize(rawMerchant string) MerchantInfo {
	cleaned := cleanMerchantName(rawMerchant)
	result := MerchantInfo{
		OriginalName:   rawMerchant,
		NormalizedName: cleaned,
		Key:            strings.ToUpper(cleaned),
	}

	upper := strings.ToUpper(cleaned)
	for _, pattern := range s.patterns {
		if pattern.Pattern.MatchString(upper) {
			result.NormalizedName = pattern.Name
			result.Key = strings.ToUpper(pattern.Name)
			result.Category = pattern.Category
			return result
		}
	}

	result.NormalizedName = titleCase(cleaned)
	return result
}

// Key returns the lookup key for a raw merchant.
func (s *MerchantSanitizer) Key(rawMerchant string) string {
	return s.Sanitize(rawMerchant).Key
}

// AddPattern adds a custom merchant pattern
func (s *MerchantSanitizer) AddPattern(pattern string, name, category string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, MerchantPattern{
		Pattern:  re,
		Name:     name,
		Category: category,
	})
	return nil
}

// cleanMerchantName removes processor prefixes, store and terminal numbers
// and the trailing province code.
func cleanMerchantName(raw string) string {
	result := strings.TrimSpace(spaces.ReplaceAllString(raw, " "))

	if loc := processorPrefix.FindStringIndex(strings.ToUpper(result)); loc != nil {
		result = result[loc[1]:]
	}

	result = storeNumber.ReplaceAllString(result, "")
	result = trailingDate.ReplaceAllString(result, "")
	result = trailingRef.ReplaceAllString(result, "")
	result = provinceSuffix.ReplaceAllString(result, "")

	return strings.TrimSpace(spaces.ReplaceAllString(result, " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(string(word[0])) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}

func defaultMerchantPatterns() []MerchantPattern {
	return []MerchantPattern{
		// Grocery
		{regexp.MustCompile(`LOBLAWS`), "Loblaws", "Groceries"},
		{regexp.MustCompile(`SUPERSTORE|RCSS`), "Real Canadian Superstore", "Groceries"},
		{regexp.MustCompile(`NO\s*FRILLS`), "No Frills", "Groceries"},
		{regexp.MustCompile(`SOBEYS`), "Sobeys", "Groceries"},
		{regexp.MustCompile(`^METRO\b`), "Metro", "Groceries"},
		{regexp.MustCompile(`COSTCO`), "Costco", "Groceries"},
		{regexp.MustCompile(`WAL-?MART`), "Walmart", "Groceries"},

		// Coffee & restaurants
		{regexp.MustCompile(`STARBUCKS`), "Starbucks", "Dining Out"},
		{regexp.MustCompile(`TIM\s*HORTONS?`), "Tim Hortons", "Dining Out"},
		{regexp.MustCompile(`MC\s*DONALD`), "McDonald's", "Dining Out"},
		{regexp.MustCompile(`UBER\s*\*?\s*EATS`), "Uber Eats", "Dining Out"},
		{regexp.MustCompile(`DOORDASH`), "DoorDash", "Dining Out"},
		{regexp.MustCompile(`SKIPTHEDISHES|SKIP THE DISHES`), "SkipTheDishes", "Dining Out"},

		// Transport (delivery patterns above match first for UBER EATS)
		{regexp.MustCompile(`\bUBER\b`), "Uber", "Transportation"},
		{regexp.MustCompile(`\bLYFT\b`), "Lyft", "Transportation"},
		{regexp.MustCompile(`PETRO[-\s]?CAN`), "Petro-Canada", "Transportation"},
		{regexp.MustCompile(`\bSHELL\b`), "Shell", "Transportation"},
		{regexp.MustCompile(`\bESSO\b`), "Esso", "Transportation"},
		{regexp.MustCompile(`PRESTO|\bTTC\b`), "TTC", "Transportation"},

		// Utilities & telecom
		{regexp.MustCompile(`ROGERS`), "Rogers", "Utilities"},
		{regexp.MustCompile(`\bBELL\b`), "Bell", "Utilities"},
		{regexp.MustCompile(`TELUS`), "Telus", "Utilities"},
		{regexp.MustCompile(`ENBRIDGE`), "Enbridge", "Utilities"},
		{regexp.MustCompile(`HYDRO`), "Hydro", "Utilities"},

		// Entertainment
		{regexp.MustCompile(`NETFLIX`), "Netflix", "Entertainment"},
		{regexp.MustCompile(`SPOTIFY`), "Spotify", "Entertainment"},
		{regexp.MustCompile(`DISNEY\s*\+|DISNEYPLUS`), "Disney+", "Entertainment"},
		{regexp.MustCompile(`CINEPLEX`), "Cineplex", "Entertainment"},

		// Health
		{regexp.MustCompile(`SHOPPERS\s*DRUG`), "Shoppers Drug Mart", "Healthcare"},
		{regexp.MustCompile(`REXALL`), "Rexall", "Healthcare"},

		// Shopping
		{regexp.MustCompile(`AMAZON|AMZN`), "Amazon", "Shopping"},
		{regexp.MustCompile(`CANADIAN\s*TIRE`), "Canadian Tire", "Shopping"},
		{regexp.MustCompile(`\bIKEA\b`), "IKEA", "Shopping"},
	}
}
