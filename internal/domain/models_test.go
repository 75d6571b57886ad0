package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, CurrencyBRL, NormalizeCurrency(""))
	assert.Equal(t, CurrencyUSD, NormalizeCurrency(" usd "))
	assert.Equal(t, Currency("GBP"), NormalizeCurrency("gbp"))
}

func TestCategory_ListedOnB3(t *testing.T) {
	testCases := []struct {
		category Category
		expected bool
	}{
		{CategoryStock, true},
		{CategoryREIT, true},
		{CategoryFixedIncome, true},
		{CategoryETF, true},
		{CategoryInternational, false},
		{CategoryCrypto, false},
		{CategoryCashReserve, false},
		{Category("Outros"), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.category), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.category.ListedOnB3())
		})
	}
}

func TestFXRates_Factor(t *testing.T) {
	rates := FXRates{CurrencyUSD: 5.5, CurrencyEUR: 0}

	assert.Equal(t, 5.5, rates.Factor(CurrencyUSD))
	assert.Equal(t, 1.0, rates.Factor(CurrencyEUR), "non-positive rate falls back to 1")
	assert.Equal(t, 1.0, rates.Factor(CurrencyBRL))

	var empty FXRates
	assert.Equal(t, 1.0, empty.Factor(CurrencyUSD))
}

func TestProviderSymbol(t *testing.T) {
	assert.Equal(t, "PETR4.SA", ProviderSymbol(" petr4 ", CategoryStock))
	assert.Equal(t, "HGLG11.SA", ProviderSymbol("HGLG11.SA", CategoryREIT))
	assert.Equal(t, "VOO", ProviderSymbol("voo", CategoryInternational))
	assert.Equal(t, "BTC-USD", ProviderSymbol("BTC-USD", CategoryCrypto))
}
