package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestCommissionAndNet(t *testing.T) {
	total := d("150.00")
	assert.True(t, Commission(total, DefaultCommissionRate).Equal(d("22.50")))
	assert.True(t, Net(total, DefaultCommissionRate).Equal(d("127.50")))
}

func TestNetAlwaysEqualsTotalMinusCommission(t *testing.T) {
	for _, raw := range []string{"0", "0.01", "99.99", "1234.56", "100000"} {
		total := d(raw)
		net := Net(total, DefaultCommissionRate)
		assert.True(t, net.Add(Commission(total, DefaultCommissionRate)).Equal(Round(total)), raw)
	}
}

func TestLineAmountAndSum(t *testing.T) {
	assert.True(t, LineAmount(d("12.50"), 4).Equal(d("50")))
	assert.True(t, Sum().IsZero())
	assert.True(t, Sum(d("100"), d("50"), d("0.25")).Equal(d("150.25")))
}

func TestParseRate(t *testing.T) {
	rate, err := ParseRate("0.2")
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("0.2")))

	_, err = ParseRate("1.5")
	require.Error(t, err)
	_, err = ParseRate("abc")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Contains(t, Format(d("1250")), "1,250")
}
