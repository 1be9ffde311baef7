package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLineTotalsCascade(t *testing.T) {
	line := DocumentLine{
		ProductID: 1,
		Quantity:  10,
		UnitPrice: 100,
		Discounts: [3]Discount{{Rate: 10}, {Rate: 5}},
		VATRate:   18,
	}

	got := ComputeLineTotals(line)

	// 10 x 100 = 1000, -10% = 900, -5% = 855, VAT 18% = 153.90
	assert.Equal(t, 855.00, got.LineTotal)
	assert.Equal(t, 153.90, got.VATAmount)
	assert.Equal(t, 1008.90, got.GrandTotal)
	assert.Equal(t, 100.00, got.Discounts[0].Amount)
	assert.Equal(t, 45.00, got.Discounts[1].Amount)
	assert.Equal(t, 0.00, got.Discounts[2].Amount)
}

func TestComputeLineTotalsIdempotent(t *testing.T) {
	line := DocumentLine{
		ProductID: 7,
		Quantity:  3,
		UnitPrice: 19.99,
		Discounts: [3]Discount{{Rate: 7.5}, {Rate: 2.25}, {Rate: 1}},
		VATRate:   8,
	}

	once := ComputeLineTotals(line)
	twice := ComputeLineTotals(once)

	assert.Equal(t, once, twice)
}

func TestComputeLineTotalsNoProduct(t *testing.T) {
	line := DocumentLine{
		Quantity:  5,
		UnitPrice: 40,
		Discounts: [3]Discount{{Rate: 10, Amount: 123}},
		VATRate:   18,
	}

	got := ComputeLineTotals(line)

	assert.Zero(t, got.LineTotal)
	assert.Zero(t, got.VATAmount)
	assert.Zero(t, got.GrandTotal)
	assert.Zero(t, got.Discounts[0].Amount)
}

func TestComputeLineTotalsFixedAmount(t *testing.T) {
	line := DocumentLine{
		ProductID: 2,
		Quantity:  4,
		UnitPrice: 50,
		Discounts: [3]Discount{{Amount: 20, Fixed: true}},
		VATRate:   10,
	}

	got := ComputeLineTotals(line)

	// 20 of 200 = 10% derived rate; net 180, VAT 18.
	assert.Equal(t, 10.0, got.Discounts[0].Rate)
	assert.Equal(t, 180.00, got.LineTotal)
	assert.Equal(t, 18.00, got.VATAmount)
	assert.Equal(t, 198.00, got.GrandTotal)
}

func TestComputeLineTotalsFixedAmountZeroBase(t *testing.T) {
	line := DocumentLine{
		ProductID: 2,
		Quantity:  0,
		UnitPrice: 50,
		Discounts: [3]Discount{{Amount: 20, Fixed: true}},
	}

	got := ComputeLineTotals(line)

	assert.Zero(t, got.Discounts[0].Rate)
	assert.Zero(t, got.LineTotal)
}

func TestComputeLineTotalsFullDiscount(t *testing.T) {
	line := DocumentLine{
		ProductID: 3,
		Quantity:  2,
		UnitPrice: 75,
		Discounts: [3]Discount{{Rate: 100}},
		VATRate:   18,
	}

	got := ComputeLineTotals(line)

	assert.Zero(t, got.LineTotal)
	assert.Zero(t, got.VATAmount)
	assert.Zero(t, got.GrandTotal)
	assert.Equal(t, 150.00, got.Discounts[0].Amount)
}

func TestRoundingOnlyOnOutputs(t *testing.T) {
	line := DocumentLine{
		ProductID: 4,
		Quantity:  3,
		UnitPrice: 9.99,
		Discounts: [3]Discount{{Rate: 3.333}, {Rate: 1.111}},
		VATRate:   18,
	}

	got := ComputeLineTotals(line)

	// Intermediates carry full precision; only outputs land on 2 decimals.
	assert.InDelta(t, 28.65, got.LineTotal, 0.005)
	assert.Equal(t, got.GrandTotal, round2(got.LineTotal+got.VATAmount))
}
