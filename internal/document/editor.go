package document

import (
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/masterdata/limits"
)

var (
	// ErrLineNotFound indicates no line carries the given local id.
	ErrLineNotFound = errors.New("line not found")
	// ErrRelatedLineLocked indicates a direct edit on a related line's
	// quantity, which is always derived from the main line.
	ErrRelatedLineLocked = errors.New("related line quantity is derived from the main line")
	// ErrRateInUse indicates an edit on the rate row of the document's
	// active currency.
	ErrRateInUse = errors.New("exchange rate is in use by the document currency")
)

// EditorState is the immutable in-memory form state of a document under edit.
// Every mutation returns a fresh value; the engine holds no hidden state, so
// callers can diff successive states freely.
type EditorState struct {
	Currency  string
	Groups    []LineGroup
	Overrides []ExchangeRate
	Official  []ExchangeRate
	Limits    []limits.DiscountLimit

	// RemovedServerIDs collects the server ids of persisted lines removed
	// during the edit session, for the caller's delete calls.
	RemovedServerIDs []int64
}

func cloneGroups(groups []LineGroup) []LineGroup {
	out := make([]LineGroup, len(groups))
	for i, g := range groups {
		related := make([]DocumentLine, len(g.Related))
		copy(related, g.Related)
		out[i] = LineGroup{Main: g.Main, Related: related}
	}
	return out
}

func cloneRates(rates []ExchangeRate) []ExchangeRate {
	out := make([]ExchangeRate, len(rates))
	copy(out, rates)
	return out
}

// WithLimits returns a state carrying the given discount limits, with every
// line's approval flag re-evaluated against them.
func (s EditorState) WithLimits(lims []limits.DiscountLimit) EditorState {
	s.Limits = lims
	s.Groups = cloneGroups(s.Groups)
	for i := range s.Groups {
		s.Groups[i].Main.ApprovalFlag, _ = EvaluateDiscountLimit(s.Groups[i].Main, lims)
		for j := range s.Groups[i].Related {
			s.Groups[i].Related[j].ApprovalFlag, _ = EvaluateDiscountLimit(s.Groups[i].Related[j], lims)
		}
	}
	return s
}

// Line returns the line with the given local id.
func (s EditorState) Line(localID string) (DocumentLine, bool) {
	for _, g := range s.Groups {
		for _, l := range g.Lines() {
			if l.LocalID == localID {
				return l, true
			}
		}
	}
	return DocumentLine{}, false
}

// Lines returns every line, group by group, main first.
func (s EditorState) Lines() []DocumentLine {
	var out []DocumentLine
	for _, g := range s.Groups {
		out = append(out, g.Lines()...)
	}
	return out
}

// RequiresApproval reports whether any line is flagged approval-required.
func (s EditorState) RequiresApproval() bool {
	for _, l := range s.Lines() {
		if l.ApprovalFlag == LineApprovalRequired {
			return true
		}
	}
	return false
}

// AddGroup appends a bundle built from a main line and its related lines.
func (s EditorState) AddGroup(main DocumentLine, related []DocumentLine) EditorState {
	if main.LocalID == "" {
		main.LocalID = NewLocalLineID()
	}
	for i := range related {
		if related[i].LocalID == "" {
			related[i].LocalID = NewLocalLineID()
		}
	}
	group := NewGroup(main, related)
	s.Groups = append(cloneGroups(s.Groups), group)
	return s.WithLimits(s.Limits)
}

// AddLine appends a standalone line.
func (s EditorState) AddLine(line DocumentLine) EditorState {
	s.Groups = append(cloneGroups(s.Groups), NewStandalone(line))
	return s.WithLimits(s.Limits)
}

// updateLine applies fn to the identified line and recomputes its totals and
// approval flag. Main-line quantity changes must go through SetQuantity.
func (s EditorState) updateLine(localID string, fn func(DocumentLine) DocumentLine) (EditorState, error) {
	groups := cloneGroups(s.Groups)
	for i := range groups {
		if groups[i].Main.LocalID == localID {
			line := ComputeLineTotals(fn(groups[i].Main))
			line.ApprovalFlag, _ = EvaluateDiscountLimit(line, s.Limits)
			groups[i].Main = line
			s.Groups = groups
			return s, nil
		}
		for j := range groups[i].Related {
			if groups[i].Related[j].LocalID == localID {
				line := ComputeLineTotals(fn(groups[i].Related[j]))
				line.ApprovalFlag, _ = EvaluateDiscountLimit(line, s.Limits)
				groups[i].Related[j] = line
				s.Groups = groups
				return s, nil
			}
		}
	}
	return s, ErrLineNotFound
}

// SetQuantity changes a main line's quantity, propagating the change to its
// related lines by ratio. Related-line quantities cannot be edited directly.
func (s EditorState) SetQuantity(localID string, quantity float64) (EditorState, error) {
	groups := cloneGroups(s.Groups)
	for i := range groups {
		if groups[i].Main.LocalID == localID {
			groups[i] = ApplyMainQuantityChange(groups[i], quantity)
			s.Groups = groups
			return s.WithLimits(s.Limits), nil
		}
		for _, rel := range groups[i].Related {
			if rel.LocalID == localID {
				return s, ErrRelatedLineLocked
			}
		}
	}
	return s, ErrLineNotFound
}

// SetUnitPrice changes a line's unit price.
func (s EditorState) SetUnitPrice(localID string, price float64) (EditorState, error) {
	return s.updateLine(localID, func(l DocumentLine) DocumentLine {
		l.UnitPrice = price
		return l
	})
}

// SetDiscountRate changes one of the three discount rates (index 0..2); the
// amount becomes derived again.
func (s EditorState) SetDiscountRate(localID string, idx int, rate float64) (EditorState, error) {
	if idx < 0 || idx > 2 {
		return s, ErrLineNotFound
	}
	return s.updateLine(localID, func(l DocumentLine) DocumentLine {
		l.Discounts[idx].Rate = rate
		l.Discounts[idx].Fixed = false
		return l
	})
}

// SetDiscountAmount fixes one of the three discount amounts; the rate becomes
// derived from it.
func (s EditorState) SetDiscountAmount(localID string, idx int, amount float64) (EditorState, error) {
	if idx < 0 || idx > 2 {
		return s, ErrLineNotFound
	}
	return s.updateLine(localID, func(l DocumentLine) DocumentLine {
		l.Discounts[idx].Amount = amount
		l.Discounts[idx].Fixed = true
		return l
	})
}

// SetVATRate changes a line's VAT rate.
func (s EditorState) SetVATRate(localID string, rate float64) (EditorState, error) {
	return s.updateLine(localID, func(l DocumentLine) DocumentLine {
		l.VATRate = rate
		return l
	})
}

// SetDescription changes a line's free-text description.
func (s EditorState) SetDescription(localID string, desc *string) (EditorState, error) {
	return s.updateLine(localID, func(l DocumentLine) DocumentLine {
		l.Description = desc
		return l
	})
}

func (s EditorState) recordRemoved(lines ...DocumentLine) EditorState {
	removed := make([]int64, len(s.RemovedServerIDs))
	copy(removed, s.RemovedServerIDs)
	for _, l := range lines {
		if id, ok := ServerLineID(l.LocalID); ok {
			removed = append(removed, id)
		}
	}
	s.RemovedServerIDs = removed
	return s
}

// RemoveLine deletes a line. Deleting a group's main line deletes the whole
// group; deleting a related line detaches just that line.
func (s EditorState) RemoveLine(localID string) (EditorState, error) {
	groups := cloneGroups(s.Groups)
	for i := range groups {
		if groups[i].Main.LocalID == localID {
			s = s.recordRemoved(groups[i].Lines()...)
			s.Groups = append(groups[:i:i], groups[i+1:]...)
			return s, nil
		}
		for j := range groups[i].Related {
			if groups[i].Related[j].LocalID == localID {
				s = s.recordRemoved(groups[i].Related[j])
				groups[i].Related = append(groups[i].Related[:j:j], groups[i].Related[j+1:]...)
				s.Groups = groups
				return s, nil
			}
		}
	}
	return s, ErrLineNotFound
}

// RemoveGroup deletes every line sharing the related-product key.
func (s EditorState) RemoveGroup(key string) (EditorState, error) {
	groups := cloneGroups(s.Groups)
	for i := range groups {
		if groups[i].Key() == key {
			s = s.recordRemoved(groups[i].Lines()...)
			s.Groups = append(groups[:i:i], groups[i+1:]...)
			return s, nil
		}
	}
	return s, ErrLineNotFound
}

// ChangeCurrency switches the document currency and re-prices every line
// whose price was fetched in a different currency. Lines with unresolved
// rates keep their prior price, still denominated in their prior currency,
// so a later change can convert them once the rates resolve.
func (s EditorState) ChangeCurrency(code string) EditorState {
	target := NormalizeCurrency(code)
	groups := cloneGroups(s.Groups)
	for i := range groups {
		lines := groups[i].Lines()
		for j, l := range lines {
			from := l.PriceCurrency
			if from == "" {
				from = s.Currency
			}
			from = NormalizeCurrency(from)
			_, okFrom := ResolveRate(from, s.Overrides, s.Official)
			_, okTo := ResolveRate(target, s.Overrides, s.Official)
			if from == target || (okFrom && okTo) {
				l.UnitPrice = RescalePrice(l.UnitPrice, from, target, s.Overrides, s.Official)
				l.PriceCurrency = target
			} else {
				l.PriceCurrency = from
			}
			lines[j] = ComputeLineTotals(l)
		}
		groups[i].Main = lines[0]
		groups[i].Related = lines[1:]
	}
	s.Currency = target
	s.Groups = groups
	return s.WithLimits(s.Limits)
}

// SetOverrideRate edits a document-local rate row. The active currency's row
// is locked while in use; an edited row stops being official.
func (s EditorState) SetOverrideRate(code string, rate float64) (EditorState, error) {
	target := NormalizeCurrency(code)
	if !CanEditRate(ExchangeRate{Currency: target}, s.Currency) {
		return s, ErrRateInUse
	}
	overrides := cloneRates(s.Overrides)
	for i := range overrides {
		if NormalizeCurrency(overrides[i].Currency) != target {
			continue
		}
		overrides[i].Rate = rate
		overrides[i].IsOfficial = false
		s.Overrides = overrides
		return s, nil
	}
	s.Overrides = append(overrides, ExchangeRate{Currency: target, Rate: rate, IsOfficial: false})
	return s, nil
}
