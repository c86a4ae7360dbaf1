package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rose() Product {
	return Product{ID: "p-rose", Name: "Red Rose", Price: 350, Taxable: true, CategoryID: "flowers"}
}

func TestStore_AddProduct_NewLine(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.AddProduct(rose()))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "p-rose", snap.Items[0].ID)
	assert.Equal(t, int64(1), snap.Items[0].Quantity)
	assert.Equal(t, int64(350), snap.Items[0].UnitPrice)
	assert.True(t, snap.Items[0].Taxable)
}

func TestStore_AddProduct_SameIDIncrementsQuantity(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.AddProduct(rose()))
	require.NoError(t, s.AddProduct(rose()))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(2), snap.Items[0].Quantity)
}

func TestStore_AddProduct_GiftCardShortCircuits(t *testing.T) {
	s := NewStore()

	err := s.AddProduct(Product{ID: "gc", Name: "Gift Card", IsGiftCard: true, GiftCardAmount: 2500})

	assert.ErrorIs(t, err, ErrGiftCardProduct)
	assert.Empty(t, s.Snapshot().Items)
}

func TestStore_AddProduct_MultipleVariantsRequireSelection(t *testing.T) {
	p := Product{ID: "p-bouquet", Name: "Bouquet", Price: 4000, Taxable: true, Variants: []Variant{
		{ID: "s", Name: "Small"},
		{ID: "l", Name: "Large"},
	}}
	s := NewStore()

	err := s.AddProduct(p)

	assert.ErrorIs(t, err, ErrVariantRequired)
	assert.Empty(t, s.Snapshot().Items)
}

func TestStore_AddProduct_SingleVariantPricePreference(t *testing.T) {
	calc := int64(4200)
	diff := int64(500)

	tests := []struct {
		name    string
		variant Variant
		want    int64
	}{
		{"calculated price wins", Variant{ID: "v", CalculatedPrice: &calc, PriceDifference: &diff, Price: 9999}, 4200},
		{"difference over base", Variant{ID: "v", PriceDifference: &diff, Price: 9999}, 4500},
		{"flat price last", Variant{ID: "v", Price: 3800}, 3800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{ID: "p", Name: "Bouquet", Price: 4000, Taxable: true, Variants: []Variant{tt.variant}}
			s := NewStore()
			require.NoError(t, s.AddProduct(p))
			snap := s.Snapshot()
			require.Len(t, snap.Items, 1)
			assert.Equal(t, tt.want, snap.Items[0].UnitPrice)
		})
	}
}

func TestStore_AddVariant_DistinctVariantsDoNotMerge(t *testing.T) {
	p := Product{ID: "p", Name: "Bouquet", Price: 4000, Taxable: true}
	s := NewStore()

	require.NoError(t, s.AddVariant(p, Variant{ID: "s", Name: "Small", Price: 3000}))
	require.NoError(t, s.AddVariant(p, Variant{ID: "l", Name: "Large", Price: 5000}))
	require.NoError(t, s.AddVariant(p, Variant{ID: "s", Name: "Small", Price: 3000}))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, int64(2), snap.Items[0].Quantity)
	assert.Equal(t, "Bouquet - Small", snap.Items[0].Name)
	assert.Equal(t, int64(1), snap.Items[1].Quantity)
}

func TestStore_UpdateQuantity(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddProduct(rose()))

	require.NoError(t, s.UpdateQuantity("p-rose", 5))
	assert.Equal(t, int64(5), s.Snapshot().Items[0].Quantity)

	// zero or less removes the line
	require.NoError(t, s.UpdateQuantity("p-rose", 0))
	assert.Empty(t, s.Snapshot().Items)
}

func TestStore_UpdateQuantity_MissingItem(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.UpdateQuantity("nope", 2), ErrItemNotFound)
}

func TestStore_UpdatePrice_SetsOverride(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddProduct(rose()))

	require.NoError(t, s.UpdatePrice("p-rose", 300))

	it := s.Snapshot().Items[0]
	require.NotNil(t, it.OverridePrice)
	assert.Equal(t, int64(300), *it.OverridePrice)
	assert.Equal(t, int64(350), it.UnitPrice)
	assert.Equal(t, int64(300), it.EffectivePrice())
	assert.True(t, it.ManuallyPriced)
}

func TestStore_AddGiftCard(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.AddGiftCard(GiftCardSale{CardNumber: "4111", Amount: 2500, Type: GiftCardPhysical}))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.False(t, snap.Items[0].Taxable)
	assert.Equal(t, int64(2500), snap.Items[0].UnitPrice)
	require.NotNil(t, snap.Items[0].GiftCard)
}

func TestStore_AddGiftCard_DuplicateRejected(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddProduct(rose()))
	require.NoError(t, s.AddGiftCard(GiftCardSale{CardNumber: "4111", Amount: 2500, Type: GiftCardPhysical}))

	err := s.AddGiftCard(GiftCardSale{CardNumber: "4111", Amount: 5000, Type: GiftCardDigital})

	assert.ErrorIs(t, err, ErrDuplicateGiftCard)
	assert.Equal(t, int64(2), s.Snapshot().ItemCount())
}

func TestStore_SetCouponDiscount_CopiesArgument(t *testing.T) {
	s := NewStore()

	d := &Discount{Amount: 300, Label: "SPRING10"}
	s.SetCouponDiscount(d)

	// The caller's struct stays untouched and later edits to it do not
	// leak into the store.
	assert.Equal(t, Source(""), d.Source)
	d.Amount = 999

	snap := s.Snapshot()
	require.NotNil(t, snap.CouponDiscount)
	assert.Equal(t, SourceCoupon, snap.CouponDiscount.Source)
	assert.Equal(t, int64(300), snap.CouponDiscount.Amount)

	s.SetCouponDiscount(nil)
	assert.Nil(t, s.Snapshot().CouponDiscount)
}

func TestStore_Clear_RotatesSession(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddProduct(rose()))
	s.AddManualDiscount(100, "loyal")
	before := s.SessionID()

	old := s.Clear()

	assert.Equal(t, before, old)
	assert.NotEqual(t, before, s.SessionID())
	snap := s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Empty(t, snap.Discounts)
	assert.Nil(t, snap.CouponDiscount)
	assert.Zero(t, snap.GiftCardDiscount)
	assert.Empty(t, snap.AutoDiscounts)
}

func TestStore_MutationHooksFire(t *testing.T) {
	s := NewStore()
	var seen []int64
	s.OnMutate(func(snap Snapshot) { seen = append(seen, snap.ItemCount()) })

	require.NoError(t, s.AddProduct(rose()))
	require.NoError(t, s.AddProduct(rose()))
	require.NoError(t, s.RemoveItem("p-rose"))

	assert.Equal(t, []int64{1, 2, 0}, seen)
}

func TestStore_SetAutoDiscountsDoesNotFireHooks(t *testing.T) {
	s := NewStore()
	fired := 0
	s.OnMutate(func(Snapshot) { fired++ })

	s.SetAutoDiscounts([]AutoDiscount{{DiscountAmount: 100, RuleID: "r"}})

	assert.Zero(t, fired)
	assert.Len(t, s.Snapshot().AutoDiscounts, 1)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddProduct(rose()))

	snap := s.Snapshot()
	snap.Items[0].Quantity = 99

	assert.Equal(t, int64(1), s.Snapshot().Items[0].Quantity)
}
