package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/resale-ledger/ledger"
)

func TestMargin(t *testing.T) {
	tests := []struct {
		name     string
		purchase string
		selling  string
		value    string
		pct      string
	}{
		{"profit", "60000", "90000", "30000.00", "50"},
		{"loss", "200", "150", "-50.00", "-25"},
		{"rounded", "3", "4", "1.00", "33.33"},
		{"zero purchase", "0", "25", "25.00", "0"},
		{"break even", "10.50", "10.50", "0.00", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, pct := Margin(ledger.MustParseAmount(tt.purchase), ledger.MustParseAmount(tt.selling))
			assert.Equal(t, tt.value, value.String())
			assert.Equal(t, tt.pct, pct.String())
		})
	}
}

func TestAllocate(t *testing.T) {
	// GIVEN: A total that does not divide evenly
	// WHEN: Allocating across items
	// THEN: Shares are truncated to cents and the last one takes the remainder

	shares := allocate(ledger.MustParseAmount("100"), 3)
	assert.Len(t, shares, 3)
	assert.Equal(t, "33.33", shares[0].String())
	assert.Equal(t, "33.33", shares[1].String())
	assert.Equal(t, "33.34", shares[2].String())
	assert.Equal(t, "100.00", ledger.Sum(shares...).String())

	assert.Equal(t, "0.00", allocate(ledger.Zero, 2)[1].String())
	assert.Nil(t, allocate(ledger.MustParseAmount("5"), 0))
}
