package document

import (
	"fmt"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/masterdata/limits"
)

// EvaluateDiscountLimit checks a line's discount rates against the limit for
// its product group. Any single violation marks the line approval-required;
// the message names the allowed maxima for user feedback. No matching limit
// record means no approval is required.
//
// This gate is advisory: the document still saves, it just enters the
// approval workflow.
func EvaluateDiscountLimit(line DocumentLine, lims []limits.DiscountLimit) (int, string) {
	var limit *limits.DiscountLimit
	for i := range lims {
		if strings.EqualFold(lims[i].ProductGroupCode, line.ProductGroupCode) {
			limit = &lims[i]
			break
		}
	}
	if limit == nil {
		return LineApprovalNone, ""
	}

	exceeded := line.Discounts[0].Rate > limit.MaxDiscount1
	if limit.MaxDiscount2 != nil && line.Discounts[1].Rate > *limit.MaxDiscount2 {
		exceeded = true
	}
	if limit.MaxDiscount3 != nil && line.Discounts[2].Rate > *limit.MaxDiscount3 {
		exceeded = true
	}
	if !exceeded {
		return LineApprovalNone, ""
	}

	msg := fmt.Sprintf("discount exceeds the limit for product group %s: max discount 1 is %.2f%%", limit.ProductGroupCode, limit.MaxDiscount1)
	if limit.MaxDiscount2 != nil {
		msg += fmt.Sprintf(", max discount 2 is %.2f%%", *limit.MaxDiscount2)
	}
	if limit.MaxDiscount3 != nil {
		msg += fmt.Sprintf(", max discount 3 is %.2f%%", *limit.MaxDiscount3)
	}
	return LineApprovalRequired, msg
}
