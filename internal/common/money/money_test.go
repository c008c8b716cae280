package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0"},
		{999, "$999"},
		{12345.6, "$12,346"},
		{1234567.49, "$1,234,567"},
		{2.5, "$3"},
		{-4200, "$-4,200"},
		{-0.4, "$0"},
		{1e19, "$10,000,000,000,000,000,000"},
		{-1e19, "$-10,000,000,000,000,000,000"},
		{math.NaN(), "$0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, USD(tt.in), "input %v", tt.in)
	}
}

func TestGrouped(t *testing.T) {
	assert.Equal(t, "15,000", Grouped(15000))
	assert.Equal(t, "0", Grouped(math.Inf(1)))
	assert.Equal(t, "12,000,000,000,000,000,000", Grouped(1.2e19))
}
