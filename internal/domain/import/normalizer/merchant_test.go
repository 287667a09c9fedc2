package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerchantSanitizer_Sanitize(t *testing.T) {
	sanitizer := NewMerchantSanitizer()

	tests := []struct {
		name     string
		input    string
		wantName string
		wantKey  string
		wantCat  string
	}{
		{"store number", "STARBUCKS #4521", "Starbucks", "STARBUCKS", "Dining Out"},
		{"city and province", "TIM HORTONS #2231 TORONTO ON", "Tim Hortons", "TIM HORTONS", "Dining Out"},
		{"square prefix", "SQ *BALZAC'S COFFEE", "Balzac's Coffee", "BALZAC'S COFFEE", ""},
		{"uber eats before uber", "UBER* EATS PENDING", "Uber Eats", "UBER EATS", "Dining Out"},
		{"uber trip", "UBER CANADA/UBERTRIP", "Uber", "UBER", "Transportation"},
		{"gas station", "SHELL GAS #112", "Shell", "SHELL", "Transportation"},
		{"terminal reference", "LOCAL DELI 0045521", "Local Deli", "LOCAL DELI", ""},
		{"trailing date", "NETFLIX.COM 12/01", "Netflix", "NETFLIX", "Entertainment"},
		{"unknown merchant", "the corner store", "The Corner Store", "THE CORNER STORE", ""},
		{"collapses spaces", "  LOBLAWS    1012  ", "Loblaws", "LOBLAWS", "Groceries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			assert.Equal(t, tt.input, got.OriginalName)
			assert.Equal(t, tt.wantName, got.NormalizedName)
			assert.Equal(t, tt.wantKey, got.Key)
			assert.Equal(t, tt.wantCat, got.Category)
		})
	}
}

func TestMerchantSanitizer_Key(t *testing.T) {
	s := NewMerchantSanitizer()
	assert.Equal(t, s.Key("STARBUCKS #4521"), s.Key("Starbucks #0007"))
}

func TestMerchantSanitizer_AddPattern(t *testing.T) {
	s := NewMerchantSanitizer()
	require.NoError(t, s.AddPattern(`GOODLIFE`, "GoodLife Fitness", "Health"))

	got := s.Sanitize("GOODLIFE CLUBS #331")
	assert.Equal(t, "GoodLife Fitness", got.NormalizedName)
	assert.Equal(t, "Health", got.Category)

	assert.Error(t, s.AddPattern(`(`, "broken", ""))
}

func BenchmarkSanitize(b *testing.B) {
	s := NewMerchantSanitizer()
	for i := 0; i < b.N; i++ {
		s.Sanitize("SQ *TIM HORTONS #2231 TORONTO ON")
	}
}
