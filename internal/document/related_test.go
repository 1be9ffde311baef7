package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGroup(t *testing.T) {
	main := DocumentLine{ProductID: 10, Quantity: 2, UnitPrice: 500, VATRate: 18}
	related := []DocumentLine{
		{ProductID: 11, Quantity: 4, UnitPrice: 25, VATRate: 18},
		{ProductID: 12, Quantity: 8, UnitPrice: 5, VATRate: 18},
	}

	g := NewGroup(main, related)

	require.Len(t, g.Related, 2)
	assert.True(t, g.Main.IsMain)
	assert.True(t, strings.HasPrefix(g.Key(), "main-10-"))
	for _, rel := range g.Related {
		assert.False(t, rel.IsMain)
		assert.Equal(t, g.Key(), rel.RelatedKey)
	}
	// Relation quantity defaults to the initial quantity.
	assert.Equal(t, 4.0, g.Related[0].RelationQuantity)
	assert.Equal(t, 8.0, g.Related[1].RelationQuantity)
	// Totals are computed on every member.
	assert.Equal(t, 1000.00, g.Main.LineTotal)
	assert.Equal(t, 100.00, g.Related[0].LineTotal)
}

func TestApplyMainQuantityChangeScalesRelated(t *testing.T) {
	g := NewGroup(
		DocumentLine{ProductID: 10, Quantity: 2, UnitPrice: 500},
		[]DocumentLine{{ProductID: 12, Quantity: 8, UnitPrice: 5}},
	)

	g = ApplyMainQuantityChange(g, 3)

	assert.Equal(t, 3.0, g.Main.Quantity)
	assert.Equal(t, 1500.00, g.Main.LineTotal)
	// 8 x (3/2) = 12
	assert.Equal(t, 12.0, g.Related[0].Quantity)
	assert.Equal(t, 60.00, g.Related[0].LineTotal)
}

func TestApplyMainQuantityChangeRounding(t *testing.T) {
	g := NewGroup(
		DocumentLine{ProductID: 10, Quantity: 3, UnitPrice: 100},
		[]DocumentLine{{ProductID: 11, Quantity: 1, UnitPrice: 10}},
	)

	g = ApplyMainQuantityChange(g, 1)

	// 1 x (1/3) rounded to 4 decimals.
	assert.Equal(t, 0.3333, g.Related[0].Quantity)
}

func TestApplyMainQuantityChangeFromZeroSkipsScaling(t *testing.T) {
	g := LineGroup{
		Main:    DocumentLine{ProductID: 10, Quantity: 0, UnitPrice: 500, RelatedKey: "main-10-x", IsMain: true},
		Related: []DocumentLine{{ProductID: 11, Quantity: 8, UnitPrice: 5, RelatedKey: "main-10-x"}},
	}

	g = ApplyMainQuantityChange(g, 5)

	assert.Equal(t, 5.0, g.Main.Quantity)
	// Prior quantity was zero: no ratio to apply.
	assert.Equal(t, 8.0, g.Related[0].Quantity)
}

func TestNewStandalone(t *testing.T) {
	g := NewStandalone(DocumentLine{ProductID: 20, Quantity: 1, UnitPrice: 9})

	assert.True(t, g.Main.IsMain)
	assert.Empty(t, g.Related)
	assert.True(t, strings.HasPrefix(g.Key(), "standalone-"))
	assert.NotEmpty(t, g.Main.LocalID)
}

func TestReplaceMainProductRebuildsGroup(t *testing.T) {
	old := NewGroup(
		DocumentLine{ProductID: 10, Quantity: 2, UnitPrice: 500},
		[]DocumentLine{{ProductID: 11, Quantity: 4, UnitPrice: 25}},
	)

	rebuilt := ReplaceMainProduct(
		DocumentLine{ProductID: 30, Quantity: 5, UnitPrice: 200},
		[]DocumentLine{{ProductID: 31, Quantity: 10, UnitPrice: 3}},
	)

	assert.NotEqual(t, old.Key(), rebuilt.Key())
	assert.True(t, strings.HasPrefix(rebuilt.Key(), "main-30-"))
	assert.Equal(t, 5.0, rebuilt.Main.Quantity)
	assert.Equal(t, 10.0, rebuilt.Related[0].Quantity)
}
