package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func snapWithItems(items ...Item) Snapshot {
	return Snapshot{Items: items}
}

func TestPrice_NoDiscounts(t *testing.T) {
	// 2 x 10.00 taxable, 12% combined rate.
	snap := snapWithItems(Item{ID: "a", UnitPrice: 1000, Quantity: 2, Taxable: true})

	got := Price(snap, 12)

	assert.Equal(t, int64(2), got.ItemCount)
	assert.Equal(t, int64(2000), got.Subtotal)
	assert.Equal(t, int64(0), got.DiscountTotal)
	assert.Equal(t, int64(2000), got.DiscountedSubtotal)
	assert.Equal(t, int64(2000), got.DiscountedTaxableSubtotal)
	assert.Equal(t, int64(240), got.Tax)
	assert.Equal(t, int64(2240), got.GrandTotal)
}

func TestPrice_ManualDiscount(t *testing.T) {
	snap := snapWithItems(Item{ID: "a", UnitPrice: 1000, Quantity: 2, Taxable: true})
	snap.Discounts = []Discount{{Source: SourceManual, Amount: 500}}

	got := Price(snap, 12)

	assert.Equal(t, int64(1500), got.DiscountedSubtotal)
	assert.Equal(t, int64(1500), got.DiscountedTaxableSubtotal)
	assert.Equal(t, int64(180), got.Tax)
	assert.Equal(t, int64(1680), got.GrandTotal)
}

func TestPrice_GiftCardOnly(t *testing.T) {
	snap := snapWithItems(Item{
		ID:        "giftcard:1111",
		UnitPrice: 2500,
		Quantity:  1,
		Taxable:   false,
		GiftCard:  &GiftCardSale{CardNumber: "1111", Amount: 2500, Type: GiftCardPhysical},
	})

	got := Price(snap, 12)

	assert.Equal(t, int64(0), got.TaxableSubtotal)
	assert.Equal(t, int64(0), got.Tax)
	assert.Equal(t, int64(2500), got.GrandTotal)
}

func TestPrice_GiftCardLineNeverTaxable(t *testing.T) {
	// Even a mislabeled taxable flag must not tax a gift card line.
	snap := snapWithItems(Item{
		ID:        "giftcard:2222",
		UnitPrice: 2500,
		Quantity:  1,
		Taxable:   true,
		GiftCard:  &GiftCardSale{CardNumber: "2222", Amount: 2500, Type: GiftCardDigital},
	})

	got := Price(snap, 12)
	assert.Equal(t, int64(0), got.TaxableSubtotal)
	assert.Equal(t, int64(0), got.Tax)
}

func TestPrice_AllSourcesStackAdditively(t *testing.T) {
	snap := snapWithItems(Item{ID: "a", UnitPrice: 5000, Quantity: 2, Taxable: true})
	snap.Discounts = []Discount{
		{Source: SourceManual, Amount: 500},
		{Source: SourceManual, Amount: 300},
	}
	snap.CouponDiscount = &Discount{Source: SourceCoupon, Amount: 200}
	snap.GiftCardDiscount = 1000
	snap.AutoDiscounts = []AutoDiscount{
		{DiscountAmount: 400, RuleID: "r1"},
		{DiscountAmount: 100, RuleID: "r2"},
	}

	got := Price(snap, 0)

	assert.Equal(t, int64(2500), got.DiscountTotal)
	assert.Equal(t, int64(7500), got.DiscountedSubtotal)
	assert.Equal(t, int64(7500), got.GrandTotal)
}

func TestPrice_ProportionalAllocationAcrossTaxClasses(t *testing.T) {
	// 10.00 taxable + 10.00 non-taxable, 25% off the whole cart: the
	// blended 0.75 ratio applies to the taxable half too.
	snap := snapWithItems(
		Item{ID: "tax", UnitPrice: 1000, Quantity: 1, Taxable: true},
		Item{ID: "notax", UnitPrice: 1000, Quantity: 1, Taxable: false},
	)
	snap.Discounts = []Discount{{Source: SourceManual, Amount: 500}}

	got := Price(snap, 10)

	assert.Equal(t, int64(1000), got.TaxableSubtotal)
	assert.Equal(t, int64(750), got.DiscountedTaxableSubtotal)
	assert.Equal(t, int64(75), got.Tax)
	assert.Equal(t, int64(1575), got.GrandTotal)
}

func TestPrice_DiscountExceedsSubtotal(t *testing.T) {
	snap := snapWithItems(Item{ID: "a", UnitPrice: 1000, Quantity: 1, Taxable: true})
	snap.Discounts = []Discount{{Source: SourceManual, Amount: 99999}}

	got := Price(snap, 12)

	assert.Equal(t, int64(0), got.DiscountedSubtotal)
	assert.Equal(t, int64(0), got.DiscountedTaxableSubtotal)
	assert.Equal(t, int64(0), got.Tax)
	assert.Equal(t, int64(0), got.GrandTotal)
	assert.GreaterOrEqual(t, got.GrandTotal, int64(0))
}

func TestPrice_EmptyCart(t *testing.T) {
	got := Price(Snapshot{}, 12)
	assert.Equal(t, Totals{}, got)
}

func TestPrice_OverrideWinsOverUnitPrice(t *testing.T) {
	override := int64(800)
	snap := snapWithItems(Item{ID: "a", UnitPrice: 1000, OverridePrice: &override, Quantity: 3, Taxable: true})

	got := Price(snap, 0)
	assert.Equal(t, int64(2400), got.Subtotal)
}

func TestPrice_Idempotent(t *testing.T) {
	snap := snapWithItems(
		Item{ID: "a", UnitPrice: 1234, Quantity: 3, Taxable: true},
		Item{ID: "b", UnitPrice: 567, Quantity: 2, Taxable: false},
	)
	snap.Discounts = []Discount{{Source: SourceManual, Amount: 321}}
	snap.AutoDiscounts = []AutoDiscount{{DiscountAmount: 100, RuleID: "r"}}

	first := Price(snap, 8.25)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Price(snap, 8.25))
	}
	assert.Equal(t, first.DiscountedSubtotal+first.Tax, first.GrandTotal)
}

func TestCombinedTaxRate(t *testing.T) {
	assert.Equal(t, 0.0, CombinedTaxRate(nil))
	assert.Equal(t, 12.0, CombinedTaxRate([]float64{12}))
	assert.InDelta(t, 8.25, CombinedTaxRate([]float64{6.25, 1.0, 1.0}), 1e-9)
}
