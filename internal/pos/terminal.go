// Package pos composes the cart store, pricing engine, auto-discount
// client, draft persistence and gift card flow into one terminal session.
package pos

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"bloompos-system/internal/cart"
	"bloompos-system/internal/database"
	"bloompos-system/internal/draft"
)

var (
	ErrCheckoutInProgress = errors.New("checkout in progress")
	ErrEmptyCart          = errors.New("cart is empty")
)

// giftCardNumberPrefix marks scanned codes that are gift card numbers
// rather than product barcodes.
const giftCardNumberPrefix = "GC"

// Evaluator re-evaluates automatic discounts for a cart snapshot.
// Implementations must not block the caller: Reevaluate returns immediately
// and invokes apply from a background goroutine.
type Evaluator interface {
	Reevaluate(ctx context.Context, snap cart.Snapshot, apply func([]cart.AutoDiscount))
}

// DraftOrders is the durable draft/order persistence consumed by the
// terminal.
type DraftOrders interface {
	SaveDraft(ctx context.Context, snap cart.Snapshot, totals cart.Totals, orderType string, deliveryFee int64) (draft.DraftRef, error)
	ListDrafts(ctx context.Context) ([]database.Order, error)
	LoadDraft(ctx context.Context, id int64) ([]cart.Item, *cart.Customer, error)
	DeleteDraft(ctx context.Context, id int64) error
	CommitOrder(ctx context.Context, snap cart.Snapshot, totals cart.Totals) (draft.DraftRef, error)
	MarkOrderPaid(ctx context.Context, orderID int64, paymentType string) error
}

// PaymentCollector is the external payment terminal integration.
type PaymentCollector interface {
	Collect(ctx context.Context, totals cart.Totals, paymentType string, paidAmount int64) error
}

// GiftCardActivator activates sold gift cards with the card provider.
// Activation is sequenced strictly after order persistence.
type GiftCardActivator interface {
	Activate(ctx context.Context, sales []cart.GiftCardSale) error
}

// ProductResolver turns a scanned barcode into a catalog product. The
// catalog itself is an external collaborator.
type ProductResolver interface {
	Resolve(ctx context.Context, barcode string) (*cart.Product, error)
}

// AddOutcome tells the caller how an add was routed.
type AddOutcome string

const (
	OutcomeAdded              AddOutcome = "added"
	OutcomeGiftCardCollecting AddOutcome = "gift_card_collecting"
	OutcomeVariantRequired    AddOutcome = "variant_required"
)

// Receipt summarizes a completed checkout. It is produced only after the
// cart has been cleared.
type Receipt struct {
	OrderID      int64       `json:"order_id"`
	OrderNumber  string      `json:"order_number"`
	Totals       cart.Totals `json:"totals"`
	PaymentType  string      `json:"payment_type"`
	PaidAmount   int64       `json:"paid_amount"`
	ChangeAmount int64       `json:"change_amount"`
	CompletedAt  time.Time   `json:"completed_at"`
}

// Terminal owns the single live cart of a POS session and serializes every
// operation against it.
type Terminal struct {
	store     *cart.Store
	flow      *cart.GiftCardFlow
	slot      draft.Slot
	saver     *draft.Autosaver
	orders    DraftOrders
	evaluator Evaluator
	payments  PaymentCollector
	activator GiftCardActivator
	resolver  ProductResolver
	taxRate   float64

	mu     sync.Mutex
	frozen bool
}

// Options carries the terminal's collaborators.
type Options struct {
	Slot      draft.Slot
	Autosaver *draft.Autosaver
	Orders    DraftOrders
	Evaluator Evaluator
	Payments  PaymentCollector
	Activator GiftCardActivator
	Resolver  ProductResolver
	TaxRates  []float64
}

func NewTerminal(opts Options) *Terminal {
	t := &Terminal{
		store:     cart.NewStore(),
		flow:      cart.NewGiftCardFlow(),
		slot:      opts.Slot,
		saver:     opts.Autosaver,
		orders:    opts.Orders,
		evaluator: opts.Evaluator,
		payments:  opts.Payments,
		activator: opts.Activator,
		resolver:  opts.Resolver,
		taxRate:   cart.CombinedTaxRate(opts.TaxRates),
	}

	// Every cart mutation fans out to a fire-and-forget auto-discount
	// re-evaluation and a debounced local autosave. Neither path ever
	// blocks or fails the mutation itself. Reevaluate is called inline so
	// its sequence numbers follow mutation order; the evaluator moves the
	// slow work to its own goroutine.
	t.store.OnMutate(func(snap cart.Snapshot) {
		if t.evaluator != nil {
			t.evaluator.Reevaluate(context.Background(), snap, t.store.SetAutoDiscounts)
		}
		if t.saver != nil {
			if snap.Empty() {
				t.saver.ScheduleDelete(snap.SessionID)
			} else {
				totals := cart.Price(snap, t.taxRate)
				t.saver.Schedule(draft.NewLocalDraft(snap, totals.GrandTotal))
			}
		}
	})
	return t
}

func (t *Terminal) SessionID() string { return t.store.SessionID() }

func (t *Terminal) Snapshot() cart.Snapshot { return t.store.Snapshot() }

func (t *Terminal) Totals() cart.Totals {
	return cart.Price(t.store.Snapshot(), t.taxRate)
}

// RestoreSession auto-restores the local draft left behind by a previous
// session, if it is still inside the restore window. The slot record is
// deleted after the restore: recovery is single use. Returns whether a
// restore happened. Storage errors are logged and treated as "no draft".
func (t *Terminal) RestoreSession(ctx context.Context, previousSessionID string) bool {
	if previousSessionID == "" || t.slot == nil {
		return false
	}
	d, err := t.slot.Load(ctx, previousSessionID)
	if err != nil {
		if !errors.Is(err, draft.ErrNoDraft) {
			log.Printf("local draft load failed for session %s: %v", previousSessionID, err)
		}
		return false
	}
	if err := t.slot.Delete(ctx, previousSessionID); err != nil {
		log.Printf("local draft delete failed for session %s: %v", previousSessionID, err)
	}
	t.store.Restore(d.Items, d.Customer, d.Discounts, d.CouponDiscount, d.GiftCardDiscount)
	return true
}

// SessionScanner lists session ids with a stored local draft.
type SessionScanner interface {
	Sessions(ctx context.Context) ([]string, error)
}

// RestoreOnStartup recovers an unsaved cart after a crash. The terminal does
// not persist its session id, so it scans the draft namespace instead and
// restores only when exactly one candidate session exists; with several it
// cannot tell which cart was live, so none are restored. Returns whether a
// restore happened.
func (t *Terminal) RestoreOnStartup(ctx context.Context, scanner SessionScanner) bool {
	if scanner == nil {
		return false
	}
	sessions, err := scanner.Sessions(ctx)
	if err != nil {
		log.Printf("local draft scan failed: %v", err)
		return false
	}
	if len(sessions) != 1 {
		return false
	}
	return t.RestoreSession(ctx, sessions[0])
}

// --- cart mutations (all rejected while a checkout is in flight) ---

func (t *Terminal) AddProduct(p cart.Product) (AddOutcome, error) {
	if err := t.ensureUnfrozen(); err != nil {
		return "", err
	}
	err := t.store.AddProduct(p)
	switch {
	case errors.Is(err, cart.ErrGiftCardProduct):
		if err := t.flow.Begin(p); err != nil {
			return "", err
		}
		return OutcomeGiftCardCollecting, nil
	case errors.Is(err, cart.ErrVariantRequired):
		return OutcomeVariantRequired, nil
	case err != nil:
		return "", err
	}
	return OutcomeAdded, nil
}

func (t *Terminal) AddVariant(p cart.Product, v cart.Variant) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	return t.store.AddVariant(p, v)
}

func (t *Terminal) UpdateQuantity(id string, qty int64) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	return t.store.UpdateQuantity(id, qty)
}

func (t *Terminal) RemoveItem(id string) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	return t.store.RemoveItem(id)
}

func (t *Terminal) UpdatePrice(id string, price int64) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	return t.store.UpdatePrice(id, price)
}

func (t *Terminal) AddCustomItem(item cart.Item) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	return t.store.AddCustomItem(item)
}

func (t *Terminal) SetCustomer(c *cart.Customer) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	t.store.SetCustomer(c)
	return nil
}

func (t *Terminal) AddManualDiscount(amount int64, label string) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	t.store.AddManualDiscount(amount, label)
	return nil
}

func (t *Terminal) SetCouponDiscount(d *cart.Discount) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	t.store.SetCouponDiscount(d)
	return nil
}

func (t *Terminal) SetGiftCardDiscount(amount int64) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	t.store.SetGiftCardDiscount(amount)
	return nil
}

// --- gift card flow ---

func (t *Terminal) GiftCardState() cart.GiftCardState { return t.flow.State() }

func (t *Terminal) ResolveGiftCard(cardNumber string, amount int64, cardType cart.GiftCardType) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	return t.flow.Resolve(cardNumber, amount, cardType)
}

// CompleteGiftCard moves the resolved card into the cart. A duplicate card
// number is surfaced and the flow stays open for correction.
func (t *Terminal) CompleteGiftCard() error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	return t.flow.Complete(t.store)
}

func (t *Terminal) CancelGiftCard() { t.flow.Cancel() }

// SellGiftCard runs the whole flow in one step for pre-collected input, as
// when the register UI submits the card dialog. Any in-progress flow is
// replaced. On failure the flow is cancelled rather than left half open.
func (t *Terminal) SellGiftCard(cardNumber string, amount int64, cardType cart.GiftCardType) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	t.flow.BeginScan(cardNumber)
	if err := t.flow.Resolve(cardNumber, amount, cardType); err != nil {
		t.flow.Cancel()
		return err
	}
	if err := t.flow.Complete(t.store); err != nil {
		t.flow.Cancel()
		return err
	}
	return nil
}

// Scan routes a scanned barcode: gift card numbers open the gift card
// flow, everything else resolves to a product. Scanner input is disabled
// while a checkout is in flight so it cannot corrupt the frozen cart.
func (t *Terminal) Scan(ctx context.Context, barcode string) (AddOutcome, error) {
	if err := t.ensureUnfrozen(); err != nil {
		return "", err
	}
	if IsGiftCardNumber(barcode) {
		t.flow.BeginScan(barcode)
		return OutcomeGiftCardCollecting, nil
	}
	if t.resolver == nil {
		return "", errors.New("no product resolver configured")
	}
	p, err := t.resolver.Resolve(ctx, barcode)
	if err != nil {
		return "", err
	}
	return t.AddProduct(*p)
}

// IsGiftCardNumber recognizes scanned gift card numbers by their prefix.
func IsGiftCardNumber(code string) bool {
	return strings.HasPrefix(strings.ToUpper(code), giftCardNumberPrefix)
}

// --- drafts ---

// SaveDraftOrder durably persists the cart as a server-side draft. On
// success the cart is cleared, the session rotated and the old session's
// local draft removed; on failure the cart is left untouched.
func (t *Terminal) SaveDraftOrder(ctx context.Context, orderType string, deliveryFee int64) (draft.DraftRef, error) {
	if err := t.ensureUnfrozen(); err != nil {
		return draft.DraftRef{}, err
	}
	snap := t.store.Snapshot()
	if snap.Empty() {
		return draft.DraftRef{}, ErrEmptyCart
	}
	ref, err := t.orders.SaveDraft(ctx, snap, cart.Price(snap, t.taxRate), orderType, deliveryFee)
	if err != nil {
		return draft.DraftRef{}, err
	}
	t.resetSession(ctx)
	return ref, nil
}

func (t *Terminal) ListDraftOrders(ctx context.Context) ([]database.Order, error) {
	return t.orders.ListDrafts(ctx)
}

// LoadDraftOrder replaces the cart with a persisted draft's lines. Manual
// and coupon discounts do not survive the server round trip; each restored
// line carries the draft order id for reconciliation at commit time. The
// current session is reset first so its local draft cannot resurrect.
func (t *Terminal) LoadDraftOrder(ctx context.Context, id int64) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	items, customer, err := t.orders.LoadDraft(ctx, id)
	if err != nil {
		return err
	}
	t.resetSession(ctx)
	t.store.Restore(items, customer, nil, nil, 0)
	return nil
}

func (t *Terminal) DeleteDraftOrder(ctx context.Context, id int64) error {
	return t.orders.DeleteDraft(ctx, id)
}

// NewOrder abandons the current cart: clear, rotate, drop the old local
// draft.
func (t *Terminal) NewOrder(ctx context.Context) error {
	if err := t.ensureUnfrozen(); err != nil {
		return err
	}
	t.resetSession(ctx)
	return nil
}

// --- checkout ---

// Checkout freezes the cart and runs the payment sequence: commit the
// order, collect payment, mark it paid, then activate gift cards strictly
// after the order is persisted. On any failure before payment confirmation
// the cart and every discount source are preserved for retry. Once payment
// is confirmed the checkout always completes: follow-up failures are logged
// and the cart is cleared synchronously before the receipt is returned, so
// a second charge against the same cart is impossible.
func (t *Terminal) Checkout(ctx context.Context, paymentType string, paidAmount int64) (Receipt, error) {
	if !t.freeze() {
		return Receipt{}, ErrCheckoutInProgress
	}
	defer t.unfreeze()

	snap := t.store.Snapshot()
	if snap.Empty() {
		return Receipt{}, ErrEmptyCart
	}
	totals := cart.Price(snap, t.taxRate)

	ref, err := t.orders.CommitOrder(ctx, snap, totals)
	if err != nil {
		return Receipt{}, err
	}

	if t.payments != nil {
		if err := t.payments.Collect(ctx, totals, paymentType, paidAmount); err != nil {
			return Receipt{}, err
		}
	}

	// Payment is confirmed past this point. Failing the checkout now would
	// leave the cart re-chargeable on retry, so a mark-paid failure is
	// logged for reconciliation and the sale still completes.
	if err := t.orders.MarkOrderPaid(ctx, ref.ID, paymentType); err != nil {
		log.Printf("mark paid failed for order %s after confirmed payment: %v", ref.OrderNumber, err)
	}

	// Activation runs only after the order is safely persisted, so a
	// failed order never strands an activated card. The reverse failure is
	// accepted and reconciled manually.
	if t.activator != nil {
		if sales := giftCardSales(snap.Items); len(sales) > 0 {
			if err := t.activator.Activate(ctx, sales); err != nil {
				log.Printf("gift card activation failed after order %s: %v", ref.OrderNumber, err)
			}
		}
	}

	t.resetSession(ctx)

	change := int64(0)
	if paidAmount > totals.GrandTotal {
		change = paidAmount - totals.GrandTotal
	}
	return Receipt{
		OrderID:      ref.ID,
		OrderNumber:  ref.OrderNumber,
		Totals:       totals,
		PaymentType:  paymentType,
		PaidAmount:   paidAmount,
		ChangeAmount: change,
		CompletedAt:  time.Now(),
	}, nil
}

// resetSession clears the cart, rotates the session id, cancels any
// pending autosave and deletes the old session's local draft slot.
func (t *Terminal) resetSession(ctx context.Context) {
	oldSession := t.store.Clear()
	if t.saver != nil {
		t.saver.Reset()
	}
	if t.slot != nil {
		if err := t.slot.Delete(ctx, oldSession); err != nil {
			log.Printf("local draft delete failed for session %s: %v", oldSession, err)
		}
	}
}

func (t *Terminal) freeze() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return false
	}
	t.frozen = true
	return true
}

func (t *Terminal) unfreeze() {
	t.mu.Lock()
	t.frozen = false
	t.mu.Unlock()
}

func (t *Terminal) ensureUnfrozen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrCheckoutInProgress
	}
	return nil
}

func giftCardSales(items []cart.Item) []cart.GiftCardSale {
	var sales []cart.GiftCardSale
	for _, it := range items {
		if it.GiftCard != nil {
			sales = append(sales, *it.GiftCard)
		}
	}
	return sales
}
