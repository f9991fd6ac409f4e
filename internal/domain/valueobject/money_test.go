package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommission_Split(t *testing.T) {
	c, err := NewCommission(500)
	require.NoError(t, err)

	commission, net := c.Split(10000)
	assert.Equal(t, int64(500), commission)
	assert.Equal(t, int64(9500), net)

	// округление вниз: 5% от 999 = 49.95
	commission, net = c.Split(999)
	assert.Equal(t, int64(49), commission)
	assert.Equal(t, int64(950), net)
}

func TestCommission_LargeAmounts(t *testing.T) {
	c, err := NewCommission(500)
	require.NoError(t, err)

	commission, net := c.Split(MaxAmount)
	assert.Equal(t, MaxAmount/20, commission)
	assert.Equal(t, MaxAmount-MaxAmount/20, net)

	// произведение amount*bps здесь переполнило бы int64
	amount := int64(100_000_000_000_000_000)
	commission, net = c.Split(amount)
	assert.Equal(t, amount/20, commission)
	assert.Equal(t, amount-amount/20, net)

	full := Commission{BasisPoints: 10000}
	assert.Equal(t, int64(9_223_372_036_854_775_807), full.Of(9_223_372_036_854_775_807))

	commission, net = c.Split(12_345_678_901)
	assert.Equal(t, int64(617_283_945), commission)
	assert.Equal(t, int64(11_728_394_956), net)
}

func TestMoney_UpperBound(t *testing.T) {
	_, err := NewMoney(MaxAmount, "USD")
	assert.NoError(t, err)
	_, err = NewMoney(MaxAmount+1, "USD")
	assert.Error(t, err)
}

func TestCommission_OutOfRange(t *testing.T) {
	_, err := NewCommission(-1)
	assert.Error(t, err)
	_, err = NewCommission(10001)
	assert.Error(t, err)
}

func TestNewBudget(t *testing.T) {
	b, err := NewBudget(10000, 50000, "usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", b.Min.Currency)
	assert.Equal(t, int64(50000), b.Max.Amount)

	_, err = NewBudget(500, 100, "USD")
	assert.Error(t, err)

	_, err = NewBudget(100, 500, "dollars")
	assert.Error(t, err)

	_, err = NewBudget(0, MaxAmount+1, "USD")
	assert.Error(t, err)
}

func TestMoney_String(t *testing.T) {
	m, err := NewMoney(123456, "")
	require.NoError(t, err)
	assert.Equal(t, "USD 1234.56", m.String())
}
