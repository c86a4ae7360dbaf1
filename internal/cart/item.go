package cart

import "time"

// GiftCardType distinguishes physical stock cards from digitally issued ones.
type GiftCardType string

const (
	GiftCardPhysical GiftCardType = "PHYSICAL"
	GiftCardDigital  GiftCardType = "DIGITAL"
)

// GiftCardSale records the card a line item activates. Card numbers are
// unique within a cart.
type GiftCardSale struct {
	CardNumber string       `json:"card_number"`
	Amount     int64        `json:"amount"`
	Type       GiftCardType `json:"type"`
}

// Item is a single cart line. Prices are integer minor units. When
// OverridePrice is set it is authoritative over UnitPrice.
type Item struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	UnitPrice      int64         `json:"unit_price"`
	OverridePrice  *int64        `json:"override_price,omitempty"`
	Quantity       int64         `json:"quantity"`
	Taxable        bool          `json:"taxable"`
	CategoryID     string        `json:"category_id,omitempty"`
	CategoryIDs    []string      `json:"category_ids,omitempty"`
	GiftCard       *GiftCardSale `json:"gift_card,omitempty"`
	DraftOrderID   string        `json:"draft_order_id,omitempty"`
	ManuallyPriced bool          `json:"manually_priced,omitempty"`
}

// EffectivePrice is the per-unit price the pricing engine reads: the
// override when present, the base price otherwise.
func (i Item) EffectivePrice() int64 {
	if i.OverridePrice != nil {
		return *i.OverridePrice
	}
	return i.UnitPrice
}

func (i Item) LineTotal() int64 {
	return i.EffectivePrice() * i.Quantity
}

// Source tags a discount with where it came from. The four sources are
// additive; no precedence or mutual exclusion applies between them.
type Source string

const (
	SourceManual   Source = "manual"
	SourceCoupon   Source = "coupon"
	SourceGiftCard Source = "giftcard"
	SourceAuto     Source = "auto"
)

// Discount is a manual or coupon adjustment applied by the cashier.
type Discount struct {
	Source Source `json:"source"`
	Amount int64  `json:"amount"`
	Label  string `json:"label,omitempty"`
}

// AutoDiscount is a server-computed candidate from the external discount
// evaluator. The list is replaced wholesale on every re-evaluation, never
// merged.
type AutoDiscount struct {
	DiscountAmount int64  `json:"discount_amount"`
	RuleID         string `json:"rule_id"`
	Description    string `json:"description"`
}

// Customer is the buyer selected on the terminal, resolved from the customer
// directory or created as a guest on demand during a draft save.
type Customer struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Guest bool   `json:"guest,omitempty"`
}

// Variant is one purchasable variation of a product. Unit price preference
// when adding: CalculatedPrice, then base price plus PriceDifference, then
// the flat Price.
type Variant struct {
	ID              string
	Name            string
	Price           int64
	CalculatedPrice *int64
	PriceDifference *int64
	IsDefault       bool
}

// Product is the resolver-facing shape of a catalog entry; the catalog
// itself lives behind an external service.
type Product struct {
	ID             string
	Name           string
	Price          int64
	Taxable        bool
	CategoryID     string
	CategoryIDs    []string
	IsGiftCard     bool
	GiftCardAmount int64
	Variants       []Variant
}

// NonDefaultVariants returns the variants a cashier must choose between.
func (p Product) NonDefaultVariants() []Variant {
	out := make([]Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		if !v.IsDefault {
			out = append(out, v)
		}
	}
	return out
}

// Snapshot is an immutable copy of store state handed to the pricing engine
// and the persistence layers.
type Snapshot struct {
	SessionID        string         `json:"session_id"`
	Items            []Item         `json:"items"`
	Customer         *Customer      `json:"customer,omitempty"`
	Discounts        []Discount     `json:"discounts"`
	CouponDiscount   *Discount      `json:"coupon_discount,omitempty"`
	GiftCardDiscount int64          `json:"gift_card_discount"`
	AutoDiscounts    []AutoDiscount `json:"auto_discounts"`
	TakenAt          time.Time      `json:"taken_at"`
}

func (s Snapshot) ItemCount() int64 {
	var n int64
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}
