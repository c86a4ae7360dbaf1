package cart

import (
	"github.com/shopspring/decimal"

	"bloompos-system/internal/money"
)

// Totals is the full pricing breakdown for one cart snapshot. All amounts
// are integer minor units.
type Totals struct {
	ItemCount                 int64 `json:"item_count"`
	Subtotal                  int64 `json:"subtotal"`
	DiscountTotal             int64 `json:"discount_total"`
	DiscountedSubtotal        int64 `json:"discounted_subtotal"`
	TaxableSubtotal           int64 `json:"taxable_subtotal"`
	DiscountedTaxableSubtotal int64 `json:"discounted_taxable_subtotal"`
	Tax                       int64 `json:"tax"`
	GrandTotal                int64 `json:"grand_total"`
}

// CombinedTaxRate sums the configured jurisdiction rates (in percent); the
// rates do not compound.
func CombinedTaxRate(rates []float64) float64 {
	var sum float64
	for _, r := range rates {
		sum += r
	}
	return sum
}

// Price computes totals for a snapshot. It is pure: the same snapshot and
// rate always produce the same totals, and nothing in the snapshot is
// mutated.
//
// All four discount sources stack additively; a blended discount ratio is
// then applied uniformly across taxable and non-taxable value, so a
// discount is never allocated against one class of goods first. Rounding
// happens at exactly two points: the discounted taxable subtotal and the
// tax amount. Discounts can exceed the subtotal; totals are floored at
// zero, never negative.
func Price(snap Snapshot, combinedTaxRate float64) Totals {
	t := Totals{ItemCount: snap.ItemCount()}

	for _, it := range snap.Items {
		line := it.LineTotal()
		t.Subtotal += line
		if it.Taxable && it.GiftCard == nil {
			t.TaxableSubtotal += line
		}
	}

	for _, d := range snap.Discounts {
		t.DiscountTotal += d.Amount
	}
	if snap.CouponDiscount != nil {
		t.DiscountTotal += snap.CouponDiscount.Amount
	}
	t.DiscountTotal += snap.GiftCardDiscount
	for _, a := range snap.AutoDiscounts {
		t.DiscountTotal += a.DiscountAmount
	}

	t.DiscountedSubtotal = t.Subtotal - t.DiscountTotal
	if t.DiscountedSubtotal < 0 {
		t.DiscountedSubtotal = 0
	}

	ratio := decimal.Zero
	if t.Subtotal > 0 {
		ratio = decimal.NewFromInt(t.DiscountedSubtotal).Div(decimal.NewFromInt(t.Subtotal))
	}

	t.DiscountedTaxableSubtotal = money.Round(decimal.NewFromInt(t.TaxableSubtotal).Mul(ratio))
	t.Tax = money.Round(decimal.NewFromInt(t.DiscountedTaxableSubtotal).
		Mul(decimal.NewFromFloat(combinedTaxRate)).
		Div(decimal.NewFromInt(100)))
	t.GrandTotal = t.DiscountedSubtotal + t.Tax
	return t
}
