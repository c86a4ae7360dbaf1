package draft

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bloompos-system/internal/cart"
	"bloompos-system/internal/database"
	"bloompos-system/internal/money"
)

var ErrDraftNotFound = errors.New("draft order not found")

const guestCustomerName = "Walk-in Guest"

// DraftRef identifies a freshly persisted draft order.
type DraftRef struct {
	ID          int64  `json:"id"`
	OrderNumber string `json:"order_number"`
}

// OrderStore persists draft and paid orders in postgres. Unlike the local
// slot, failures here are user-visible: callers surface them and leave the
// cart untouched.
type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

// SaveDraft converts the cart into a draft order: the customer is resolved
// by id or created as a guest on demand, and every cart line becomes a
// custom product tuple. Runs in one transaction.
func (s *OrderStore) SaveDraft(ctx context.Context, snap cart.Snapshot, totals cart.Totals, orderType string, deliveryFee int64) (DraftRef, error) {
	if len(snap.Items) == 0 {
		return DraftRef{}, errors.New("cannot save an empty cart as draft")
	}
	if orderType == "" {
		orderType = "PICKUP"
	}

	var ref DraftRef
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customerID, err := resolveCustomer(tx, snap.Customer)
		if err != nil {
			return err
		}

		order := database.Order{
			OrderNumber:    newOrderNumber("DR"),
			CustomerID:     &customerID,
			Status:         database.OrderStatusDraft,
			OrderType:      orderType,
			DeliveryFee:    money.Format(deliveryFee),
			Subtotal:       money.Format(totals.Subtotal),
			DiscountAmount: money.Format(totals.DiscountTotal),
			TaxAmount:      money.Format(totals.Tax),
			TotalAmount:    money.Format(totals.GrandTotal),
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create draft order: %w", err)
		}

		items := orderItemsFromCart(order.ID, snap.Items)
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("create draft order items: %w", err)
		}

		ref = DraftRef{ID: order.ID, OrderNumber: order.OrderNumber}
		return nil
	})
	if err != nil {
		return DraftRef{}, err
	}
	return ref, nil
}

// ListDrafts returns every resumable draft order, newest first.
func (s *OrderStore) ListDrafts(ctx context.Context) ([]database.Order, error) {
	var orders []database.Order
	err := s.db.WithContext(ctx).
		Where("status = ?", database.OrderStatusDraft).
		Preload("Items").
		Preload("Customer").
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list draft orders: %w", err)
	}
	return orders, nil
}

// LoadDraft reconstructs cart lines from a persisted draft. Manual and
// coupon discount state is intentionally not round-tripped through server
// drafts; only items and the customer come back, each line tagged with the
// draft order id for later reconciliation.
func (s *OrderStore) LoadDraft(ctx context.Context, id int64) ([]cart.Item, *cart.Customer, error) {
	var order database.Order
	err := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, database.OrderStatusDraft).
		Preload("Items").
		Preload("Customer").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load draft order: %w", err)
	}

	items, err := cartItemsFromOrder(order)
	if err != nil {
		return nil, nil, err
	}

	var customer *cart.Customer
	if order.Customer != nil {
		customer = &cart.Customer{
			ID:    order.Customer.ID,
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
			Guest: order.Customer.IsGuest,
		}
	}
	return items, customer, nil
}

func (s *OrderStore) DeleteDraft(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, database.OrderStatusDraft).
		Delete(&database.Order{})
	if res.Error != nil {
		return fmt.Errorf("delete draft order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// CommitOrder persists the checkout cart as a PENDING order in one
// transaction; MarkOrderPaid finalizes it once payment is confirmed. Lines
// that came from a loaded draft carry their draft order id; those source
// drafts are deleted in the same transaction.
func (s *OrderStore) CommitOrder(ctx context.Context, snap cart.Snapshot, totals cart.Totals) (DraftRef, error) {
	if len(snap.Items) == 0 {
		return DraftRef{}, errors.New("cannot commit an empty cart")
	}

	var ref DraftRef
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customerID *int64
		if snap.Customer != nil {
			id, err := resolveCustomer(tx, snap.Customer)
			if err != nil {
				return err
			}
			customerID = &id
		}

		order := database.Order{
			OrderNumber:    newOrderNumber("ORD"),
			CustomerID:     customerID,
			Status:         database.OrderStatusPending,
			OrderType:      "POS",
			DeliveryFee:    "0.00",
			Subtotal:       money.Format(totals.Subtotal),
			DiscountAmount: money.Format(totals.DiscountTotal),
			TaxAmount:      money.Format(totals.Tax),
			TotalAmount:    money.Format(totals.GrandTotal),
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		items := orderItemsFromCart(order.ID, snap.Items)
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("create order items: %w", err)
		}

		for _, draftID := range sourceDraftIDs(snap.Items) {
			if err := tx.Where("id = ? AND status = ?", draftID, database.OrderStatusDraft).
				Delete(&database.Order{}).Error; err != nil {
				return fmt.Errorf("delete source draft %d: %w", draftID, err)
			}
		}

		ref = DraftRef{ID: order.ID, OrderNumber: order.OrderNumber}
		return nil
	})
	if err != nil {
		return DraftRef{}, err
	}
	return ref, nil
}

// MarkOrderPaid finalizes a pending order after the payment collector
// confirms the charge.
func (s *OrderStore) MarkOrderPaid(ctx context.Context, orderID int64, paymentType string) error {
	res := s.db.WithContext(ctx).Model(&database.Order{}).
		Where("id = ? AND status = ?", orderID, database.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":       database.OrderStatusPaid,
			"payment_type": paymentType,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("mark order paid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d is not pending", orderID)
	}
	return nil
}

func resolveCustomer(tx *gorm.DB, c *cart.Customer) (int64, error) {
	if c != nil && c.ID != 0 {
		var existing database.Customer
		err := tx.Where("id = ?", c.ID).First(&existing).Error
		if err == nil {
			return existing.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("resolve customer: %w", err)
		}
	}

	guest := database.Customer{Name: guestCustomerName, IsGuest: true}
	if c != nil && c.Name != "" {
		guest.Name = c.Name
		guest.Email = c.Email
		guest.Phone = c.Phone
	}
	if err := tx.Create(&guest).Error; err != nil {
		return 0, fmt.Errorf("create guest customer: %w", err)
	}
	return guest.ID, nil
}

// orderItemsFromCart flattens cart lines into custom product tuples.
func orderItemsFromCart(orderID int64, items []cart.Item) []database.OrderItem {
	out := make([]database.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, database.OrderItem{
			OrderID:     orderID,
			Description: it.Name,
			Price:       money.Format(it.EffectivePrice()),
			Quantity:    it.Quantity,
			Taxable:     it.Taxable && it.GiftCard == nil,
			CategoryIDs: it.CategoryIDs,
		})
	}
	return out
}

// cartItemsFromOrder rebuilds cart lines from persisted tuples. Line ids
// are freshly minted; the original merge keys do not survive the round trip.
func cartItemsFromOrder(order database.Order) ([]cart.Item, error) {
	draftID := strconv.FormatInt(order.ID, 10)
	items := make([]cart.Item, 0, len(order.Items))
	for _, oi := range order.Items {
		price, err := money.FromDecimalString(oi.Price)
		if err != nil {
			return nil, fmt.Errorf("draft item %d has invalid price: %w", oi.ID, err)
		}
		items = append(items, cart.Item{
			ID:           uuid.NewString(),
			Name:         oi.Description,
			UnitPrice:    price,
			Quantity:     oi.Quantity,
			Taxable:      oi.Taxable,
			CategoryIDs:  oi.CategoryIDs,
			DraftOrderID: draftID,
		})
	}
	return items, nil
}

// sourceDraftIDs collects the distinct draft order ids the cart lines were
// loaded from.
func sourceDraftIDs(items []cart.Item) []int64 {
	seen := map[int64]bool{}
	var ids []int64
	for _, it := range items {
		if it.DraftOrderID == "" {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(it.DraftOrderID), 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func newOrderNumber(prefix string) string {
	return fmt.Sprintf("%s-%s-%s",
		prefix,
		time.Now().Format("20060102"),
		strings.ToUpper(uuid.NewString()[:8]),
	)
}
