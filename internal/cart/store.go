package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrItemNotFound = errors.New("cart item not found")
	// ErrGiftCardProduct signals that the added product must go through the
	// gift card flow instead of straight into the cart.
	ErrGiftCardProduct = errors.New("product is a gift card")
	// ErrVariantRequired signals that the product has multiple non-default
	// variants and one must be selected first.
	ErrVariantRequired   = errors.New("variant selection required")
	ErrDuplicateGiftCard = errors.New("gift card number already in cart")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

// MutationHook runs after every state-changing cart mutation with a snapshot
// taken under the lock. Hooks are invoked outside the lock and must not
// block the caller for long; the terminal registers the auto-discount
// re-evaluation and the autosave scheduler here.
type MutationHook func(Snapshot)

// Store holds the single live cart of a terminal session. All mutations are
// serialized by the mutex; queries return copies.
type Store struct {
	mu               sync.Mutex
	sessionID        string
	items            []Item
	customer         *Customer
	discounts        []Discount
	coupon           *Discount
	giftCardDiscount int64
	auto             []AutoDiscount
	hooks            []MutationHook
}

func NewStore() *Store {
	return &Store{sessionID: uuid.NewString()}
}

// OnMutate registers a hook. Not safe to call concurrently with mutations;
// wire hooks up before the terminal goes live.
func (s *Store) OnMutate(h MutationHook) {
	s.hooks = append(s.hooks, h)
}

func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// AddProduct adds one unit of a product. Gift card products and products
// with more than one non-default variant are not added directly; the caller
// receives ErrGiftCardProduct or ErrVariantRequired and routes accordingly.
// Adding a product already in the cart increments its quantity.
func (s *Store) AddProduct(p Product) error {
	if p.IsGiftCard {
		return ErrGiftCardProduct
	}
	if len(p.NonDefaultVariants()) > 1 {
		return ErrVariantRequired
	}

	s.mu.Lock()
	if s.bumpQuantityLocked(p.ID) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return nil
	}

	price := p.Price
	if vs := p.NonDefaultVariants(); len(vs) == 1 {
		price = variantPrice(p, vs[0])
	}
	s.items = append(s.items, Item{
		ID:          p.ID,
		Name:        p.Name,
		UnitPrice:   price,
		Quantity:    1,
		Taxable:     p.Taxable,
		CategoryID:  p.CategoryID,
		CategoryIDs: p.CategoryIDs,
	})
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// AddVariant adds one unit of a selected product variant. The line id is
// the product id qualified by the variant id so distinct variants never
// merge with each other.
func (s *Store) AddVariant(p Product, v Variant) error {
	id := p.ID + ":" + v.ID

	s.mu.Lock()
	if s.bumpQuantityLocked(id) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return nil
	}

	name := p.Name
	if v.Name != "" {
		name = p.Name + " - " + v.Name
	}
	s.items = append(s.items, Item{
		ID:          id,
		Name:        name,
		UnitPrice:   variantPrice(p, v),
		Quantity:    1,
		Taxable:     p.Taxable,
		CategoryID:  p.CategoryID,
		CategoryIDs: p.CategoryIDs,
	})
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// variantPrice picks the variant unit price: calculated price first, then
// the base price adjusted by the variant difference, then the flat price.
func variantPrice(p Product, v Variant) int64 {
	if v.CalculatedPrice != nil {
		return *v.CalculatedPrice
	}
	if v.PriceDifference != nil {
		return p.Price + *v.PriceDifference
	}
	return v.Price
}

// bumpQuantityLocked increments an existing line's quantity by one and
// reports whether the id was found. Caller holds the lock.
func (s *Store) bumpQuantityLocked(id string) bool {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity++
			return true
		}
	}
	return false
}

// UpdateQuantity replaces a line's quantity; zero or negative removes it.
func (s *Store) UpdateQuantity(id string, qty int64) error {
	if qty <= 0 {
		return s.RemoveItem(id)
	}

	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity = qty
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

func (s *Store) RemoveItem(id string) error {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// UpdatePrice sets a manual per-unit override and marks the line as
// manually priced. The override wins over the base price on every read.
func (s *Store) UpdatePrice(id string, price int64) error {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			p := price
			s.items[i].OverridePrice = &p
			s.items[i].ManuallyPriced = true
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// AddCustomItem appends a free-form line (custom arrangements, fees). The
// line keeps whatever id the caller assigned; an empty id gets a fresh one.
func (s *Store) AddCustomItem(item Item) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.items = append(s.items, item)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// AddGiftCard appends a gift card line priced at the activation amount.
// Gift card lines are never taxable. A card number already present in the
// cart is rejected without mutating anything.
func (s *Store) AddGiftCard(sale GiftCardSale) error {
	s.mu.Lock()
	for _, it := range s.items {
		if it.GiftCard != nil && it.GiftCard.CardNumber == sale.CardNumber {
			s.mu.Unlock()
			return ErrDuplicateGiftCard
		}
	}
	gc := sale
	s.items = append(s.items, Item{
		ID:        "giftcard:" + sale.CardNumber,
		Name:      "Gift Card",
		UnitPrice: sale.Amount,
		Quantity:  1,
		Taxable:   false,
		GiftCard:  &gc,
	})
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

func (s *Store) SetCustomer(c *Customer) {
	s.mu.Lock()
	s.customer = c
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// AddManualDiscount appends a cashier-entered discount. Multiple manual
// discounts coexist and stack additively.
func (s *Store) AddManualDiscount(amount int64, label string) {
	s.mu.Lock()
	s.discounts = append(s.discounts, Discount{Source: SourceManual, Amount: amount, Label: label})
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetCouponDiscount replaces the single active coupon; nil clears it. The
// discount is copied so the store never aliases caller memory.
func (s *Store) SetCouponDiscount(d *Discount) {
	s.mu.Lock()
	if d != nil {
		c := *d
		c.Source = SourceCoupon
		s.coupon = &c
	} else {
		s.coupon = nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetGiftCardDiscount records value redeemed from a gift card as payment.
func (s *Store) SetGiftCardDiscount(amount int64) {
	s.mu.Lock()
	s.giftCardDiscount = amount
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetAutoDiscounts replaces the auto-discount list wholesale with the
// evaluator's response. It does not fire mutation hooks: the evaluator is
// itself driven by them, and auto-discounts are not part of the autosaved
// draft.
func (s *Store) SetAutoDiscounts(list []AutoDiscount) {
	s.mu.Lock()
	s.auto = append([]AutoDiscount(nil), list...)
	s.mu.Unlock()
}

// Restore replaces the whole cart with a previously saved snapshot. Used by
// the draft load paths; fires hooks so auto-discounts re-evaluate against
// the restored contents.
func (s *Store) Restore(items []Item, customer *Customer, discounts []Discount, coupon *Discount, giftCardDiscount int64) {
	s.mu.Lock()
	s.items = append([]Item(nil), items...)
	s.customer = customer
	s.discounts = append([]Discount(nil), discounts...)
	s.coupon = coupon
	s.giftCardDiscount = giftCardDiscount
	s.auto = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Clear empties the cart, drops every discount source and rotates the
// session id so a stale draft can never resurrect into the new session.
// Returns the prior session id so the caller can delete its draft slot.
func (s *Store) Clear() (oldSessionID string) {
	s.mu.Lock()
	oldSessionID = s.sessionID
	s.sessionID = uuid.NewString()
	s.items = nil
	s.customer = nil
	s.discounts = nil
	s.coupon = nil
	s.giftCardDiscount = 0
	s.auto = nil
	s.mu.Unlock()
	return oldSessionID
}

// Snapshot returns a deep-enough copy for pricing and persistence; nested
// slices are copied, pointer fields are treated as immutable.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:        s.sessionID,
		Items:            append([]Item(nil), s.items...),
		Customer:         s.customer,
		Discounts:        append([]Discount(nil), s.discounts...),
		CouponDiscount:   s.coupon,
		GiftCardDiscount: s.giftCardDiscount,
		AutoDiscounts:    append([]AutoDiscount(nil), s.auto...),
		TakenAt:          time.Now(),
	}
}

func (s *Store) notify(snap Snapshot) {
	for _, h := range s.hooks {
		h(snap)
	}
}
