package cart

import "errors"

var (
	ErrNotGiftCard      = errors.New("product is not a gift card")
	ErrFlowNotCollect   = errors.New("gift card flow is not collecting")
	ErrFlowNotResolved  = errors.New("gift card flow has nothing to add")
	ErrMissingCardInfo  = errors.New("card number and amount are required")
	ErrNegativeActivate = errors.New("activation amount must be positive")
)

type GiftCardState string

const (
	GiftCardIdle       GiftCardState = "idle"
	GiftCardCollecting GiftCardState = "collecting"
	GiftCardResolved   GiftCardState = "resolved"
)

// GiftCardFlow walks a gift card sale from trigger to cart line:
// idle -> collecting -> resolved -> (added, back to idle). It is triggered
// either by adding a gift card product or by a barcode scan recognized as a
// card number. The flow itself never touches the cart until Complete.
type GiftCardFlow struct {
	state      GiftCardState
	cardNumber string
	amount     int64
	cardType   GiftCardType
}

func NewGiftCardFlow() *GiftCardFlow {
	return &GiftCardFlow{state: GiftCardIdle}
}

func (f *GiftCardFlow) State() GiftCardState { return f.state }

// Begin starts collection from a gift card product; the activation amount
// is pre-filled from product metadata when present and can be replaced at
// Resolve.
func (f *GiftCardFlow) Begin(p Product) error {
	if !p.IsGiftCard {
		return ErrNotGiftCard
	}
	f.state = GiftCardCollecting
	f.cardNumber = ""
	f.amount = p.GiftCardAmount
	f.cardType = GiftCardPhysical
	return nil
}

// BeginScan starts collection from a scanned card number; only the amount
// remains to be collected.
func (f *GiftCardFlow) BeginScan(cardNumber string) {
	f.state = GiftCardCollecting
	f.cardNumber = cardNumber
	f.amount = 0
	f.cardType = GiftCardPhysical
}

// Resolve records the collected card number and activation amount. A zero
// amount falls back to the pre-filled one. Re-resolving an already resolved
// flow is allowed so a rejected duplicate can be corrected in place.
func (f *GiftCardFlow) Resolve(cardNumber string, amount int64, cardType GiftCardType) error {
	if f.state != GiftCardCollecting && f.state != GiftCardResolved {
		return ErrFlowNotCollect
	}
	if cardNumber == "" {
		cardNumber = f.cardNumber
	}
	if amount == 0 {
		amount = f.amount
	}
	if cardNumber == "" || amount == 0 {
		return ErrMissingCardInfo
	}
	if amount < 0 {
		return ErrNegativeActivate
	}
	f.cardNumber = cardNumber
	f.amount = amount
	if cardType != "" {
		f.cardType = cardType
	}
	f.state = GiftCardResolved
	return nil
}

// Complete appends the resolved card to the cart as a non-taxable line
// priced at the activation amount. A duplicate card number leaves the flow
// resolved so the cashier can correct the number and retry.
func (f *GiftCardFlow) Complete(s *Store) error {
	if f.state != GiftCardResolved {
		return ErrFlowNotResolved
	}
	err := s.AddGiftCard(GiftCardSale{
		CardNumber: f.cardNumber,
		Amount:     f.amount,
		Type:       f.cardType,
	})
	if err != nil {
		return err
	}
	f.reset()
	return nil
}

func (f *GiftCardFlow) Cancel() { f.reset() }

func (f *GiftCardFlow) reset() {
	f.state = GiftCardIdle
	f.cardNumber = ""
	f.amount = 0
	f.cardType = ""
}
