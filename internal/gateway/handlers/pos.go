package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bloompos-system/internal/cart"
	"bloompos-system/internal/draft"
	"bloompos-system/internal/money"
	"bloompos-system/internal/pos"
)

type POSHTTPHandler struct {
	terminal *pos.Terminal
}

func NewPOSHTTPHandler(terminal *pos.Terminal) *POSHTTPHandler {
	return &POSHTTPHandler{
		terminal: terminal,
	}
}

// Request structs. Money travels as two-decimal strings on the wire and is
// converted to minor units at the boundary.
type VariantRequest struct {
	ID              string  `json:"id" binding:"required"`
	Name            string  `json:"name"`
	Price           *string `json:"price,omitempty"`
	CalculatedPrice *string `json:"calculated_price,omitempty"`
	PriceDifference *string `json:"price_difference,omitempty"`
	IsDefault       bool    `json:"is_default"`
}

type AddItemRequest struct {
	ProductID      string           `json:"product_id" binding:"required"`
	Name           string           `json:"name" binding:"required"`
	Price          string           `json:"price" binding:"required"`
	Taxable        bool             `json:"taxable"`
	CategoryID     string           `json:"category_id,omitempty"`
	CategoryIDs    []string         `json:"category_ids,omitempty"`
	IsGiftCard     bool             `json:"is_gift_card"`
	GiftCardAmount *string          `json:"gift_card_amount,omitempty"`
	Variants       []VariantRequest `json:"variants,omitempty"`
	VariantID      *string          `json:"variant_id,omitempty"`
}

type AddCustomItemRequest struct {
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
	Taxable  bool   `json:"taxable"`
}

type SellGiftCardRequest struct {
	CardNumber string `json:"card_number" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Type       string `json:"type,omitempty"`
}

type ScanRequest struct {
	Barcode string `json:"barcode" binding:"required"`
}

type UpdateQuantityRequest struct {
	Quantity int64 `json:"quantity" binding:"min=0"`
}

type UpdatePriceRequest struct {
	Price string `json:"price" binding:"required"`
}

type SetCustomerRequest struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name" binding:"required"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type ManualDiscountRequest struct {
	Amount string `json:"amount" binding:"required"`
	Label  string `json:"label,omitempty"`
}

type CouponDiscountRequest struct {
	Amount *string `json:"amount,omitempty"`
	Label  string  `json:"label,omitempty"`
}

type GiftCardDiscountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type SaveDraftRequest struct {
	OrderType   string  `json:"order_type" binding:"required"`
	DeliveryFee *string `json:"delivery_fee,omitempty"`
}

type CheckoutRequest struct {
	PaymentType string `json:"payment_type" binding:"required"`
	PaidAmount  string `json:"paid_amount" binding:"required"`
}

// totalsView is the wire shape of computed totals: display strings, never
// raw minor units.
type totalsView struct {
	ItemCount     int64  `json:"item_count"`
	Subtotal      string `json:"subtotal"`
	DiscountTotal string `json:"discount_total"`
	TaxableAmount string `json:"taxable_amount"`
	Tax           string `json:"tax"`
	GrandTotal    string `json:"grand_total"`
}

func viewTotals(t cart.Totals) totalsView {
	return totalsView{
		ItemCount:     t.ItemCount,
		Subtotal:      money.Format(t.Subtotal),
		DiscountTotal: money.Format(t.DiscountTotal),
		TaxableAmount: money.Format(t.DiscountedTaxableSubtotal),
		Tax:           money.Format(t.Tax),
		GrandTotal:    money.Format(t.GrandTotal),
	}
}

func (h *POSHTTPHandler) cartView() map[string]interface{} {
	snap := h.terminal.Snapshot()
	return map[string]interface{}{
		"session_id": snap.SessionID,
		"cart":       snap,
		"totals":     viewTotals(h.terminal.Totals()),
	}
}

func mutationStatus(err error) int {
	switch {
	case errors.Is(err, pos.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// --- Cart Handlers ---

func (h *POSHTTPHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	product, err := productFromRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if req.VariantID != nil {
		variant, ok := findVariant(product, *req.VariantID)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse("Unknown variant"))
			return
		}
		if err := h.terminal.AddVariant(product, variant); err != nil {
			c.JSON(mutationStatus(err), errorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusOK, successResponse("Item added to cart", h.cartView()))
		return
	}

	outcome, err := h.terminal.AddProduct(product)
	if err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}

	switch outcome {
	case pos.OutcomeGiftCardCollecting:
		c.JSON(http.StatusOK, successWithMetaResponse("Gift card details required", h.cartView(), gin.H{"outcome": outcome}))
	case pos.OutcomeVariantRequired:
		c.JSON(http.StatusOK, successWithMetaResponse("Variant selection required", gin.H{"variants": product.NonDefaultVariants()}, gin.H{"outcome": outcome}))
	default:
		c.JSON(http.StatusOK, successResponse("Item added to cart", h.cartView()))
	}
}

func (h *POSHTTPHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	outcome, err := h.terminal.Scan(ctx, req.Barcode)
	if err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}

	if outcome == pos.OutcomeGiftCardCollecting {
		c.JSON(http.StatusOK, successWithMetaResponse("Gift card details required", h.cartView(), gin.H{"outcome": outcome}))
		return
	}
	c.JSON(http.StatusOK, successWithMetaResponse("Barcode processed", h.cartView(), gin.H{"outcome": outcome}))
}

func (h *POSHTTPHandler) AddCustomItem(c *gin.Context) {
	var req AddCustomItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	price, err := money.FromDecimalString(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid price"))
		return
	}

	item := cart.Item{
		Name:      req.Name,
		UnitPrice: price,
		Quantity:  req.Quantity,
		Taxable:   req.Taxable,
	}
	if err := h.terminal.AddCustomItem(item); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Custom item added to cart", h.cartView()))
}

func (h *POSHTTPHandler) SellGiftCard(c *gin.Context) {
	var req SellGiftCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	amount, err := money.FromDecimalString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid amount"))
		return
	}

	cardType := cart.GiftCardPhysical
	if req.Type != "" {
		cardType = cart.GiftCardType(req.Type)
	}

	if err := h.terminal.SellGiftCard(req.CardNumber, amount, cardType); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Gift card added to cart", h.cartView()))
}

func (h *POSHTTPHandler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse("Cart retrieved successfully", h.cartView()))
}

func (h *POSHTTPHandler) GetTotals(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse("Totals computed successfully", viewTotals(h.terminal.Totals())))
}

func (h *POSHTTPHandler) UpdateQuantity(c *gin.Context) {
	itemID := c.Param("id")
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	if err := h.terminal.UpdateQuantity(itemID, req.Quantity); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Quantity updated", h.cartView()))
}

func (h *POSHTTPHandler) UpdatePrice(c *gin.Context) {
	itemID := c.Param("id")
	var req UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	price, err := money.FromDecimalString(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid price"))
		return
	}

	if err := h.terminal.UpdatePrice(itemID, price); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Price updated", h.cartView()))
}

func (h *POSHTTPHandler) RemoveItem(c *gin.Context) {
	itemID := c.Param("id")
	if err := h.terminal.RemoveItem(itemID); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Item removed from cart", h.cartView()))
}

func (h *POSHTTPHandler) SetCustomer(c *gin.Context) {
	var req SetCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	customer := &cart.Customer{
		ID:    req.ID,
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}
	if err := h.terminal.SetCustomer(customer); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Customer assigned", h.cartView()))
}

// --- Discount Handlers ---

func (h *POSHTTPHandler) AddManualDiscount(c *gin.Context) {
	var req ManualDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	amount, err := money.FromDecimalString(req.Amount)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid discount amount"))
		return
	}

	if err := h.terminal.AddManualDiscount(amount, req.Label); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Discount applied", h.cartView()))
}

// SetCouponDiscount replaces the coupon slot; a null amount clears it.
func (h *POSHTTPHandler) SetCouponDiscount(c *gin.Context) {
	var req CouponDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	var coupon *cart.Discount
	if req.Amount != nil {
		amount, err := money.FromDecimalString(*req.Amount)
		if err != nil || amount <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid discount amount"))
			return
		}
		coupon = &cart.Discount{Source: cart.SourceCoupon, Amount: amount, Label: req.Label}
	}

	if err := h.terminal.SetCouponDiscount(coupon); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Coupon updated", h.cartView()))
}

func (h *POSHTTPHandler) SetGiftCardDiscount(c *gin.Context) {
	var req GiftCardDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	amount, err := money.FromDecimalString(req.Amount)
	if err != nil || amount < 0 {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid discount amount"))
		return
	}

	if err := h.terminal.SetGiftCardDiscount(amount); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Gift card redemption updated", h.cartView()))
}

// --- Draft Handlers ---

func (h *POSHTTPHandler) SaveDraft(c *gin.Context) {
	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	var deliveryFee int64
	if req.DeliveryFee != nil {
		fee, err := money.FromDecimalString(*req.DeliveryFee)
		if err != nil || fee < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid delivery fee"))
			return
		}
		deliveryFee = fee
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	ref, err := h.terminal.SaveDraftOrder(ctx, req.OrderType, deliveryFee)
	if err != nil {
		if errors.Is(err, pos.ErrEmptyCart) {
			c.JSON(http.StatusBadRequest, errorResponse("Cart is empty"))
			return
		}
		c.JSON(mutationStatus(err), errorResponse("Failed to save draft"))
		return
	}
	c.JSON(http.StatusCreated, successResponse("Draft saved successfully", ref))
}

func (h *POSHTTPHandler) ListDrafts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	drafts, err := h.terminal.ListDraftOrders(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to list drafts"))
		return
	}
	c.JSON(http.StatusOK, successWithMetaResponse("Drafts retrieved successfully", drafts, gin.H{"count": len(drafts)}))
}

func (h *POSHTTPHandler) LoadDraft(c *gin.Context) {
	draftID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid draft ID"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.terminal.LoadDraftOrder(ctx, draftID); err != nil {
		status := mutationStatus(err)
		if errors.Is(err, draft.ErrDraftNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, errorResponse("Failed to load draft"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Draft loaded into cart", h.cartView()))
}

func (h *POSHTTPHandler) DeleteDraft(c *gin.Context) {
	draftID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid draft ID"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.terminal.DeleteDraftOrder(ctx, draftID); err != nil {
		if errors.Is(err, draft.ErrDraftNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Draft not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to delete draft"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Draft deleted successfully", nil))
}

// --- Checkout ---

func (h *POSHTTPHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	paidAmount, err := money.FromDecimalString(req.PaidAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid paid amount"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	receipt, err := h.terminal.Checkout(ctx, req.PaymentType, paidAmount)
	if err != nil {
		switch {
		case errors.Is(err, pos.ErrCheckoutInProgress):
			c.JSON(http.StatusConflict, errorResponse("Checkout already in progress"))
		case errors.Is(err, pos.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, errorResponse("Cart is empty"))
		default:
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, successResponse("Payment processed successfully", map[string]interface{}{
		"order_id":      receipt.OrderID,
		"order_number":  receipt.OrderNumber,
		"totals":        viewTotals(receipt.Totals),
		"payment_type":  receipt.PaymentType,
		"paid_amount":   money.Format(receipt.PaidAmount),
		"change_amount": money.Format(receipt.ChangeAmount),
		"completed_at":  receipt.CompletedAt,
	}))
}

func (h *POSHTTPHandler) NewOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.terminal.NewOrder(ctx); err != nil {
		c.JSON(mutationStatus(err), errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("New order started", h.cartView()))
}

// --- Helpers ---

func productFromRequest(req AddItemRequest) (cart.Product, error) {
	price, err := money.FromDecimalString(req.Price)
	if err != nil {
		return cart.Product{}, errors.New("invalid price")
	}

	p := cart.Product{
		ID:          req.ProductID,
		Name:        req.Name,
		Price:       price,
		Taxable:     req.Taxable,
		CategoryID:  req.CategoryID,
		CategoryIDs: req.CategoryIDs,
		IsGiftCard:  req.IsGiftCard,
	}
	if req.GiftCardAmount != nil {
		amount, err := money.FromDecimalString(*req.GiftCardAmount)
		if err != nil {
			return cart.Product{}, errors.New("invalid gift card amount")
		}
		p.GiftCardAmount = amount
	}
	for _, v := range req.Variants {
		variant := cart.Variant{ID: v.ID, Name: v.Name, IsDefault: v.IsDefault}
		if v.Price != nil {
			if variant.Price, err = money.FromDecimalString(*v.Price); err != nil {
				return cart.Product{}, errors.New("invalid variant price")
			}
		}
		if v.CalculatedPrice != nil {
			calc, err := money.FromDecimalString(*v.CalculatedPrice)
			if err != nil {
				return cart.Product{}, errors.New("invalid variant price")
			}
			variant.CalculatedPrice = &calc
		}
		if v.PriceDifference != nil {
			diff, err := money.FromDecimalString(*v.PriceDifference)
			if err != nil {
				return cart.Product{}, errors.New("invalid variant price")
			}
			variant.PriceDifference = &diff
		}
		p.Variants = append(p.Variants, variant)
	}
	return p, nil
}

func findVariant(p cart.Product, variantID string) (cart.Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return cart.Variant{}, false
}
