package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGiftCardFlow_FromProduct(t *testing.T) {
	f := NewGiftCardFlow()
	s := NewStore()

	require.NoError(t, f.Begin(Product{ID: "gc", Name: "Gift Card", IsGiftCard: true, GiftCardAmount: 2500}))
	assert.Equal(t, GiftCardCollecting, f.State())

	// amount pre-filled from the product, only the number is collected
	require.NoError(t, f.Resolve("4111", 0, GiftCardPhysical))
	assert.Equal(t, GiftCardResolved, f.State())

	require.NoError(t, f.Complete(s))
	assert.Equal(t, GiftCardIdle, f.State())

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(2500), snap.Items[0].UnitPrice)
	assert.False(t, snap.Items[0].Taxable)
}

func TestGiftCardFlow_FromScan(t *testing.T) {
	f := NewGiftCardFlow()
	s := NewStore()

	f.BeginScan("4222")
	require.NoError(t, f.Resolve("", 5000, GiftCardDigital))
	require.NoError(t, f.Complete(s))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	require.NotNil(t, snap.Items[0].GiftCard)
	assert.Equal(t, "4222", snap.Items[0].GiftCard.CardNumber)
	assert.Equal(t, GiftCardDigital, snap.Items[0].GiftCard.Type)
}

func TestGiftCardFlow_RejectsNonGiftCardProduct(t *testing.T) {
	f := NewGiftCardFlow()
	assert.ErrorIs(t, f.Begin(rose()), ErrNotGiftCard)
	assert.Equal(t, GiftCardIdle, f.State())
}

func TestGiftCardFlow_ResolveRequiresCollecting(t *testing.T) {
	f := NewGiftCardFlow()
	assert.ErrorIs(t, f.Resolve("4111", 2500, GiftCardPhysical), ErrFlowNotCollect)
}

func TestGiftCardFlow_ResolveRequiresCardAndAmount(t *testing.T) {
	f := NewGiftCardFlow()
	f.BeginScan("")
	assert.ErrorIs(t, f.Resolve("", 0, GiftCardPhysical), ErrMissingCardInfo)
}

func TestGiftCardFlow_DuplicateStaysResolved(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddGiftCard(GiftCardSale{CardNumber: "4111", Amount: 2500, Type: GiftCardPhysical}))

	f := NewGiftCardFlow()
	f.BeginScan("4111")
	require.NoError(t, f.Resolve("", 2500, GiftCardPhysical))

	err := f.Complete(s)
	assert.ErrorIs(t, err, ErrDuplicateGiftCard)
	assert.Equal(t, GiftCardResolved, f.State())
	assert.Equal(t, int64(1), s.Snapshot().ItemCount())

	// correcting the number lets the sale through
	require.NoError(t, f.Resolve("4112", 2500, GiftCardPhysical))
	require.NoError(t, f.Complete(s))
	assert.Equal(t, int64(2), s.Snapshot().ItemCount())
}
