// Package autodiscount talks to the external discount evaluation service.
// Auto-discounts are a convenience layer: evaluation runs fire-and-forget
// after cart mutations, and any failure leaves the previously applied list
// untouched without ever blocking a mutation or checkout.
package autodiscount

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"bloompos-system/internal/cart"
)

const evaluateSource = "pos"

type cartItemPayload struct {
	ID          string   `json:"id"`
	CategoryID  string   `json:"categoryId,omitempty"`
	CategoryIDs []string `json:"categoryIds,omitempty"`
	Quantity    int64    `json:"quantity"`
	Price       int64    `json:"price"`
}

type evaluateRequest struct {
	CartItems []cartItemPayload `json:"cartItems"`
	Source    string            `json:"source"`
}

type evaluateResponse struct {
	Discounts []struct {
		DiscountAmount int64  `json:"discountAmount"`
		RuleID         string `json:"ruleId"`
		Description    string `json:"description"`
	} `json:"discounts"`
}

// Client posts cart contents to the evaluator and applies the response.
// Responses can arrive out of order; a monotonic sequence number ensures a
// slow stale response never overwrites the discounts of a newer cart.
type Client struct {
	baseURL string
	http    *http.Client

	seq     uint64
	mu      sync.Mutex
	applied uint64
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Reevaluate asks the service which automatic discounts the snapshot
// qualifies for and hands the full replacement list to apply. The sequence
// number is taken before returning, so numbers follow mutation order; the
// HTTP round trip then runs in the background and never blocks the caller.
// Gift card lines are excluded from the payload. Errors are logged and
// swallowed.
func (c *Client) Reevaluate(ctx context.Context, snap cart.Snapshot, apply func([]cart.AutoDiscount)) {
	seq := atomic.AddUint64(&c.seq, 1)

	go func() {
		discounts, err := c.evaluate(ctx, snap)
		if err != nil {
			log.Printf("auto-discount evaluation failed, keeping previous discounts: %v", err)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if seq < c.applied {
			log.Printf("auto-discount response %d superseded by %d, dropped", seq, c.applied)
			return
		}
		c.applied = seq
		apply(discounts)
	}()
}

func (c *Client) evaluate(ctx context.Context, snap cart.Snapshot) ([]cart.AutoDiscount, error) {
	payload := evaluateRequest{Source: evaluateSource, CartItems: make([]cartItemPayload, 0, len(snap.Items))}
	for _, it := range snap.Items {
		if it.GiftCard != nil {
			continue
		}
		payload.CartItems = append(payload.CartItems, cartItemPayload{
			ID:          it.ID,
			CategoryID:  it.CategoryID,
			CategoryIDs: it.CategoryIDs,
			Quantity:    it.Quantity,
			Price:       it.EffectivePrice(),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal auto-apply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/discounts/auto-apply", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build auto-apply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auto-apply request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auto-apply returned status %d", resp.StatusCode)
	}

	var decoded evaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode auto-apply response: %w", err)
	}

	out := make([]cart.AutoDiscount, 0, len(decoded.Discounts))
	for _, d := range decoded.Discounts {
		out = append(out, cart.AutoDiscount{
			DiscountAmount: d.DiscountAmount,
			RuleID:         d.RuleID,
			Description:    d.Description,
		})
	}
	return out, nil
}
