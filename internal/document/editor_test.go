package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/masterdata/limits"
)

func newEditorState() EditorState {
	s := EditorState{Currency: "TRY"}
	s = s.AddGroup(
		DocumentLine{LocalID: "line-1", ProductID: 10, ProductGroupCode: "PUMPS", Quantity: 2, UnitPrice: 500, VATRate: 18},
		[]DocumentLine{{LocalID: "line-2", ProductID: 11, Quantity: 8, UnitPrice: 5, VATRate: 18}},
	)
	s = s.AddLine(DocumentLine{LocalID: "line-3", ProductID: 20, ProductGroupCode: "VALVES", Quantity: 1, UnitPrice: 100, VATRate: 18})
	return s
}

func TestEditorSetQuantityOnMain(t *testing.T) {
	s := newEditorState()

	next, err := s.SetQuantity("line-1", 4)
	require.NoError(t, err)

	main, ok := next.Line("line-1")
	require.True(t, ok)
	assert.Equal(t, 4.0, main.Quantity)
	rel, _ := next.Line("line-2")
	assert.Equal(t, 16.0, rel.Quantity)

	// The prior state is untouched.
	prior, _ := s.Line("line-1")
	assert.Equal(t, 2.0, prior.Quantity)
}

func TestEditorSetQuantityOnRelatedRejected(t *testing.T) {
	s := newEditorState()

	_, err := s.SetQuantity("line-2", 99)
	assert.ErrorIs(t, err, ErrRelatedLineLocked)
}

func TestEditorSetQuantityUnknownLine(t *testing.T) {
	s := newEditorState()

	_, err := s.SetQuantity("line-99", 1)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestEditorDiscountRateAndAmount(t *testing.T) {
	s := newEditorState()

	next, err := s.SetDiscountRate("line-3", 0, 10)
	require.NoError(t, err)
	line, _ := next.Line("line-3")
	assert.Equal(t, 10.00, line.Discounts[0].Amount)
	assert.False(t, line.Discounts[0].Fixed)

	next, err = next.SetDiscountAmount("line-3", 0, 25)
	require.NoError(t, err)
	line, _ = next.Line("line-3")
	assert.Equal(t, 25.0, line.Discounts[0].Rate)
	assert.True(t, line.Discounts[0].Fixed)
}

func TestEditorDiscountIndexOutOfRange(t *testing.T) {
	s := newEditorState()

	_, err := s.SetDiscountRate("line-3", 3, 10)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestEditorWithLimitsFlagsLines(t *testing.T) {
	s := newEditorState()
	next, err := s.SetDiscountRate("line-1", 0, 20)
	require.NoError(t, err)

	next = next.WithLimits([]limits.DiscountLimit{
		{ProductGroupCode: "PUMPS", MaxDiscount1: 15},
	})

	line, _ := next.Line("line-1")
	assert.Equal(t, LineApprovalRequired, line.ApprovalFlag)
	assert.True(t, next.RequiresApproval())

	// Lowering the discount clears the flag.
	next, err = next.SetDiscountRate("line-1", 0, 15)
	require.NoError(t, err)
	line, _ = next.Line("line-1")
	assert.Equal(t, LineApprovalNone, line.ApprovalFlag)
	assert.False(t, next.RequiresApproval())
}

func TestEditorRemoveMainRemovesGroup(t *testing.T) {
	s := newEditorState()

	next, err := s.RemoveLine("line-1")
	require.NoError(t, err)

	_, ok := next.Line("line-1")
	assert.False(t, ok)
	_, ok = next.Line("line-2")
	assert.False(t, ok)
	assert.ElementsMatch(t, []int64{1, 2}, next.RemovedServerIDs)
}

func TestEditorRemoveRelatedKeepsGroup(t *testing.T) {
	s := newEditorState()

	next, err := s.RemoveLine("line-2")
	require.NoError(t, err)

	_, ok := next.Line("line-1")
	assert.True(t, ok)
	_, ok = next.Line("line-2")
	assert.False(t, ok)
	assert.Equal(t, []int64{2}, next.RemovedServerIDs)
}

func TestEditorRemoveGroupByKey(t *testing.T) {
	s := newEditorState()
	key := s.Groups[0].Key()

	next, err := s.RemoveGroup(key)
	require.NoError(t, err)
	require.Len(t, next.Groups, 1)
	assert.ElementsMatch(t, []int64{1, 2}, next.RemovedServerIDs)
}

func TestEditorChangeCurrencyRescalesPrices(t *testing.T) {
	s := newEditorState()
	s.Official = []ExchangeRate{
		{Currency: "TRY", Rate: 1},
		{Currency: "USD", Rate: 32.5},
	}

	next := s.ChangeCurrency("usd")

	assert.Equal(t, "USD", next.Currency)
	main, _ := next.Line("line-1")
	assert.InDelta(t, 500*32.5, main.UnitPrice, 1e-9)
	assert.Equal(t, "USD", main.PriceCurrency)
	// Prices in the prior state are untouched.
	prior, _ := s.Line("line-1")
	assert.Equal(t, 500.0, prior.UnitPrice)
}

func TestEditorChangeCurrencyUnresolvedKeepsPrices(t *testing.T) {
	s := newEditorState()

	next := s.ChangeCurrency("CHF")

	assert.Equal(t, "CHF", next.Currency)
	main, _ := next.Line("line-1")
	assert.Equal(t, 500.0, main.UnitPrice)
	// The price is still denominated in the prior currency.
	assert.Equal(t, "TRY", main.PriceCurrency)
}

func TestEditorChangeCurrencyConvertsOnceRatesResolve(t *testing.T) {
	s := newEditorState()

	next := s.ChangeCurrency("CHF")
	next.Official = []ExchangeRate{
		{Currency: "TRY", Rate: 1},
		{Currency: "CHF", Rate: 36},
	}

	again := next.ChangeCurrency("CHF")
	main, _ := again.Line("line-1")
	assert.InDelta(t, 500*36.0, main.UnitPrice, 1e-9)
	assert.Equal(t, "CHF", main.PriceCurrency)
}

func TestEditorSetOverrideRate(t *testing.T) {
	s := newEditorState()
	s.Overrides = []ExchangeRate{{Currency: "USD", Rate: 32.5, IsOfficial: true}}

	next, err := s.SetOverrideRate("usd", 33.0)
	require.NoError(t, err)
	assert.Equal(t, 33.0, next.Overrides[0].Rate)
	assert.False(t, next.Overrides[0].IsOfficial)
}

func TestEditorSetOverrideRateActiveCurrencyLocked(t *testing.T) {
	s := newEditorState()

	_, err := s.SetOverrideRate("TRY", 1.5)
	assert.ErrorIs(t, err, ErrRateInUse)
}

func TestEditorSetOverrideRateNewCurrency(t *testing.T) {
	s := newEditorState()

	next, err := s.SetOverrideRate("EUR", 35.0)
	require.NoError(t, err)
	require.Len(t, next.Overrides, 1)
	assert.Equal(t, "EUR", next.Overrides[0].Currency)
	assert.False(t, next.Overrides[0].IsOfficial)
}
