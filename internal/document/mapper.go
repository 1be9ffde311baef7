package document

import (
	"sort"
	"strconv"
	"strings"
)

// LineFromRow converts a remote detail row into an editable line.
func LineFromRow(row LineRow) DocumentLine {
	localID := PersistedLineID(row.ID)
	key := row.RelatedProductKey
	if key == "" {
		key = StandaloneKey(localID)
	}
	return DocumentLine{
		LocalID:          localID,
		ProductID:        row.ProductID,
		ProductCode:      row.ProductCode,
		ProductName:      row.ProductName,
		ProductGroupCode: row.ProductGroupCode,
		Quantity:         row.Quantity,
		UnitPrice:        row.UnitPrice,
		Discounts: [3]Discount{
			{Rate: row.DiscountRate1, Amount: row.DiscountAmount1},
			{Rate: row.DiscountRate2, Amount: row.DiscountAmount2},
			{Rate: row.DiscountRate3, Amount: row.DiscountAmount3},
		},
		VATRate:          row.VATRate,
		VATAmount:        row.VATAmount,
		LineTotal:        row.LineTotal,
		GrandTotal:       row.GrandTotal,
		Description:      row.Description,
		PricingRuleID:    row.PricingRuleID,
		RelatedKey:       key,
		IsMain:           row.IsMainRelatedProduct || row.RelatedProductKey == "",
		RelationQuantity: row.RelationQuantity,
		ApprovalFlag:     row.ApprovalStatus,
	}
}

// ToFormState groups raw detail rows into the nested editable form state:
// rows sharing a related-product key become one group, rows without a key
// become standalone groups under a synthetic per-line key. Groups are ordered
// by the main line's numeric id, related lines by their numeric id.
func ToFormState(rows []LineRow) []LineGroup {
	byKey := make(map[string][]LineRow)
	var keys []string
	for _, row := range rows {
		if row.Deleted {
			continue
		}
		key := row.RelatedProductKey
		if key == "" {
			key = StandaloneKey(PersistedLineID(row.ID))
		}
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], row)
	}

	groups := make([]LineGroup, 0, len(keys))
	for _, key := range keys {
		members := byKey[key]
		sort.Slice(members, func(i, j int) bool {
			// Main first, then numeric id order.
			if members[i].IsMainRelatedProduct != members[j].IsMainRelatedProduct {
				return members[i].IsMainRelatedProduct
			}
			return members[i].ID < members[j].ID
		})

		group := LineGroup{Main: LineFromRow(members[0])}
		group.Main.IsMain = true
		for _, row := range members[1:] {
			rel := LineFromRow(row)
			rel.IsMain = false
			group.Related = append(group.Related, rel)
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		a, _ := ServerLineID(groups[i].Main.LocalID)
		b, _ := ServerLineID(groups[j].Main.LocalID)
		return a < b
	})
	return groups
}

// ToCreateDTO builds a create request body from a line, stripping UI-only
// state (local id, nesting).
func ToCreateDTO(line DocumentLine, documentID int64) CreateLineDTO {
	key := line.RelatedKey
	if strings.HasPrefix(key, standaloneKeyTag) {
		key = ""
	}
	return CreateLineDTO{
		DocumentID:           documentID,
		ProductID:            line.ProductID,
		Quantity:             line.Quantity,
		UnitPrice:            line.UnitPrice,
		DiscountRate1:        line.Discounts[0].Rate,
		DiscountAmount1:      line.Discounts[0].Amount,
		DiscountRate2:        line.Discounts[1].Rate,
		DiscountAmount2:      line.Discounts[1].Amount,
		DiscountRate3:        line.Discounts[2].Rate,
		DiscountAmount3:      line.Discounts[2].Amount,
		VATRate:              line.VATRate,
		VATAmount:            line.VATAmount,
		LineTotal:            line.LineTotal,
		GrandTotal:           line.GrandTotal,
		Description:          line.Description,
		PricingRuleID:        line.PricingRuleID,
		RelatedProductKey:    key,
		IsMainRelatedProduct: line.IsMain && key != "",
		RelationQuantity:     line.RelationQuantity,
		ApprovalStatus:       line.ApprovalFlag,
	}
}

// ToUpdateDTO builds an update request body from a persisted line. Lines that
// were never persisted have no server id and yield nil; the caller must route
// them through create instead.
func ToUpdateDTO(line DocumentLine, documentID int64) *UpdateLineDTO {
	serverID, ok := ServerLineID(line.LocalID)
	if !ok {
		return nil
	}
	return &UpdateLineDTO{
		ID:            serverID,
		CreateLineDTO: ToCreateDTO(line, documentID),
	}
}

// CurrencyToRateType resolves a currency code to the remote numeric rate-type
// identifier, echoing the raw code when the reference list has no match.
func CurrencyToRateType(code string, options []CurrencyOption) string {
	want := NormalizeCurrency(code)
	for _, opt := range options {
		if NormalizeCurrency(opt.Code) == want {
			return strconv.Itoa(opt.RateType)
		}
	}
	return code
}

// RateTypeToCurrency resolves a numeric rate-type identifier back to its
// currency code, echoing the raw value when unmatched.
func RateTypeToCurrency(value string, options []CurrencyOption) string {
	rt, err := strconv.Atoi(value)
	if err != nil {
		return value
	}
	for _, opt := range options {
		if opt.RateType == rt {
			return opt.Code
		}
	}
	return value
}
