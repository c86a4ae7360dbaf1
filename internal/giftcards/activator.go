// Package giftcards talks to the external card provider that activates
// sold gift cards.
package giftcards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bloompos-system/internal/cart"
)

// HTTPActivator activates cards against the provider's REST endpoint.
// Callers sequence activation after order persistence and decide what a
// failure means; the activator just reports it.
type HTTPActivator struct {
	baseURL string
	http    *http.Client
}

func NewHTTPActivator(baseURL string, timeout time.Duration) *HTTPActivator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPActivator{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type activationRequest struct {
	Cards []activationCard `json:"cards"`
}

type activationCard struct {
	CardNumber string `json:"card_number"`
	Amount     int64  `json:"amount"`
	Type       string `json:"type"`
}

func (a *HTTPActivator) Activate(ctx context.Context, sales []cart.GiftCardSale) error {
	if len(sales) == 0 {
		return nil
	}

	payload := activationRequest{Cards: make([]activationCard, 0, len(sales))}
	for _, s := range sales {
		payload.Cards = append(payload.Cards, activationCard{
			CardNumber: s.CardNumber,
			Amount:     s.Amount,
			Type:       string(s.Type),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/gift-cards/activate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build activation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("activate gift cards: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("activate gift cards: provider returned %d", resp.StatusCode)
	}
	return nil
}
