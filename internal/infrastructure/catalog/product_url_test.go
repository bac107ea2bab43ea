package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductURLParser_ExtractProductID(t *testing.T) {
	parser := NewProductURLParser("walmart.com")

	tests := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{name: "slug and id", url: "https://www.walmart.com/ip/Great-Value-Whole-Milk/10450114", wantID: "10450114", wantOK: true},
		{name: "query and fragment", url: "https://www.walmart.com/ip/Widget/555?athbdg=L1200#about", wantID: "555", wantOK: true},
		{name: "no slug", url: "http://walmart.com/ip/100", wantID: "100", wantOK: true},
		{name: "trailing slash", url: "https://www.walmart.com/ip/Widget/555/", wantID: "555", wantOK: true},
		{name: "surrounding space", url: "  https://www.walmart.com/ip/Widget/555  ", wantID: "555", wantOK: true},
		{name: "other host", url: "https://www.example.com/ip/Widget/555"},
		{name: "lookalike host", url: "https://notwalmart.com/ip/Widget/555"},
		{name: "search page", url: "https://www.walmart.com/search?q=milk"},
		{name: "non-numeric id", url: "https://www.walmart.com/ip/Widget/abc"},
		{name: "relative", url: "/ip/Widget/555"},
		{name: "empty", url: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := parser.ExtractProductID(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNewProductURLParser_NormalizesHost(t *testing.T) {
	parser := NewProductURLParser(" WWW.Walmart.com ")

	id, ok := parser.ExtractProductID("https://walmart.com/ip/Widget/555")
	assert.True(t, ok)
	assert.Equal(t, "555", id)
}
