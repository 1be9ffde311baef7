package document

// NewGroup builds a line group from a main line and its related lines. The
// group gets a fresh related-product key, the main flag is forced onto the
// main line only, related lines record their relation quantity, and every
// line is run through the calculator.
func NewGroup(main DocumentLine, related []DocumentLine) LineGroup {
	key := NewRelatedKey(main.ProductID)
	main.RelatedKey = key
	main.IsMain = true
	main = ComputeLineTotals(main)

	out := make([]DocumentLine, len(related))
	for i, rel := range related {
		rel.RelatedKey = key
		rel.IsMain = false
		if rel.RelationQuantity == 0 {
			rel.RelationQuantity = rel.Quantity
		}
		out[i] = ComputeLineTotals(rel)
	}
	return LineGroup{Main: main, Related: out}
}

// NewStandalone builds a single-line group with a synthetic key.
func NewStandalone(line DocumentLine) LineGroup {
	if line.LocalID == "" {
		line.LocalID = NewLocalLineID()
	}
	line.RelatedKey = StandaloneKey(line.LocalID)
	line.IsMain = true
	return LineGroup{Main: ComputeLineTotals(line)}
}

// ApplyMainQuantityChange scales a group after its main line's quantity
// changed. Related quantities scale by newQuantity/oldQuantity, rounded to 4
// decimals and clamped at zero; the main line's totals are recomputed with
// the new quantity, not scaled. Scaling only applies when the previous main
// quantity was positive.
func ApplyMainQuantityChange(g LineGroup, newQuantity float64) LineGroup {
	oldQuantity := g.Main.Quantity
	g.Main.Quantity = newQuantity
	g.Main = ComputeLineTotals(g.Main)

	if oldQuantity <= 0 {
		return g
	}
	ratio := newQuantity / oldQuantity

	related := make([]DocumentLine, len(g.Related))
	for i, rel := range g.Related {
		scaled := round4(rel.Quantity * ratio)
		if scaled < 0 {
			scaled = 0
		}
		rel.Quantity = scaled
		related[i] = ComputeLineTotals(rel)
	}
	g.Related = related
	return g
}

// ReplaceMainProduct rebuilds the group wholesale around a new main line:
// ratio scaling does not apply when the product itself changed.
func ReplaceMainProduct(main DocumentLine, related []DocumentLine) LineGroup {
	return NewGroup(main, related)
}
