package document

import "math"

// round2 rounds a monetary amount to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round4 rounds a quantity to 4 decimal places.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// ComputeLineTotals recomputes every derived field of a line from its raw
// inputs. Pure and idempotent; safe to call repeatedly.
//
// Discount rate and amount are mutually derived against quantity × unit price:
// a discount whose amount was entered directly (Fixed) has its rate derived
// from the amount, every other discount has its amount derived from the rate.
// Discounts compound sequentially, VAT applies to the discounted net, and only
// the outputs are rounded so intermediate steps carry full precision.
func ComputeLineTotals(line DocumentLine) DocumentLine {
	if line.ProductID == 0 {
		for i := range line.Discounts {
			line.Discounts[i].Amount = 0
		}
		line.LineTotal = 0
		line.VATAmount = 0
		line.GrandTotal = 0
		return line
	}

	base := line.Quantity * line.UnitPrice
	for i := range line.Discounts {
		d := line.Discounts[i]
		if d.Fixed {
			if base != 0 {
				d.Rate = d.Amount / base * 100
			} else {
				d.Rate = 0
			}
		} else {
			d.Amount = round2(base * d.Rate / 100)
		}
		line.Discounts[i] = d
	}

	net := base
	for _, d := range line.Discounts {
		net *= 1 - d.Rate/100
	}

	line.LineTotal = round2(net)
	line.VATAmount = round2(net * line.VATRate / 100)
	line.GrandTotal = round2(line.LineTotal + line.VATAmount)
	return line
}
