package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "8.00", Format(800, "USD"))
	assert.Equal(t, "0.05", Format(5, "eur"))
	assert.Equal(t, "1500", Format(1500, "JPY"))
	assert.Equal(t, "-1.50", Format(-150, "USD"))
	assert.Equal(t, "11.90 EUR", Display(1190, "eur"))
}

func TestParse(t *testing.T) {
	cents, err := Parse("12.34", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cents)

	yen, err := Parse("1500", "JPY")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), yen)

	_, err = Parse("1.234", "USD")
	assert.Error(t, err)

	_, err = Parse("abc", "USD")
	assert.Error(t, err)
}
