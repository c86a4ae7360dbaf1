// Package draft implements the two persistence paths for an in-progress
// cart: an ephemeral single-slot local draft in redis that survives
// terminal crashes, and durable server-side draft orders in postgres.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"bloompos-system/internal/cart"
)

const (
	localDraftKeyPrefix = "pos:draft:"
	// localDraftKeyTTL is a redis hygiene bound only; the restore window is
	// enforced at read time against SavedAt, never by storage expiry.
	localDraftKeyTTL = 24 * time.Hour

	DefaultRestoreWindow = 5 * time.Minute
)

var ErrNoDraft = errors.New("no restorable draft")

// LocalDraft is the serialized snapshot of an unsaved cart, one slot per
// session id. Auto-discounts are not part of it; they re-evaluate after a
// restore.
type LocalDraft struct {
	ID               string          `json:"id"`
	Items            []cart.Item     `json:"items"`
	Customer         *cart.Customer  `json:"customer,omitempty"`
	Discounts        []cart.Discount `json:"discounts"`
	CouponDiscount   *cart.Discount  `json:"coupon_discount,omitempty"`
	GiftCardDiscount int64           `json:"gift_card_discount"`
	SavedAt          time.Time       `json:"saved_at"`
	ItemCount        int64           `json:"item_count"`
	Total            int64           `json:"total"`
}

// NewLocalDraft snapshots cart state into a draft keyed by the session id.
func NewLocalDraft(snap cart.Snapshot, total int64) LocalDraft {
	return LocalDraft{
		ID:               snap.SessionID,
		Items:            snap.Items,
		Customer:         snap.Customer,
		Discounts:        snap.Discounts,
		CouponDiscount:   snap.CouponDiscount,
		GiftCardDiscount: snap.GiftCardDiscount,
		SavedAt:          time.Now(),
		ItemCount:        snap.ItemCount(),
		Total:            total,
	}
}

// Slot is the single-slot local draft storage. Implementations are
// best-effort: callers treat every error as non-critical.
type Slot interface {
	Save(ctx context.Context, d LocalDraft) error
	Load(ctx context.Context, sessionID string) (*LocalDraft, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisSlot stores one LocalDraft JSON document per session id.
type RedisSlot struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

func NewRedisSlot(client *redis.Client, restoreWindow time.Duration) *RedisSlot {
	if restoreWindow <= 0 {
		restoreWindow = DefaultRestoreWindow
	}
	return &RedisSlot{client: client, window: restoreWindow, now: time.Now}
}

func (r *RedisSlot) Save(ctx context.Context, d LocalDraft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal local draft: %w", err)
	}
	if err := r.client.Set(ctx, localDraftKey(d.ID), data, localDraftKeyTTL).Err(); err != nil {
		return fmt.Errorf("save local draft: %w", err)
	}
	return nil
}

// Load returns the draft for the session if one exists and its SavedAt is
// still inside the restore window. A draft past the window is treated as
// absent and removed.
func (r *RedisSlot) Load(ctx context.Context, sessionID string) (*LocalDraft, error) {
	data, err := r.client.Get(ctx, localDraftKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, fmt.Errorf("load local draft: %w", err)
	}

	var d LocalDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal local draft: %w", err)
	}

	if !WithinRestoreWindow(d.SavedAt, r.now(), r.window) {
		_ = r.client.Del(ctx, localDraftKey(sessionID)).Err()
		return nil, ErrNoDraft
	}
	return &d, nil
}

func (r *RedisSlot) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, localDraftKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete local draft: %w", err)
	}
	return nil
}

// Sessions lists the session ids that currently hold a local draft record.
// Records past the restore window may still appear; Load filters those.
func (r *RedisSlot) Sessions(ctx context.Context) ([]string, error) {
	var sessions []string
	iter := r.client.Scan(ctx, 0, localDraftKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		sessions = append(sessions, strings.TrimPrefix(iter.Val(), localDraftKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan local drafts: %w", err)
	}
	return sessions, nil
}

// WithinRestoreWindow reports whether a draft saved at savedAt is still
// auto-restorable at now.
func WithinRestoreWindow(savedAt, now time.Time, window time.Duration) bool {
	age := now.Sub(savedAt)
	return age >= 0 && age <= window
}

func localDraftKey(sessionID string) string {
	return localDraftKeyPrefix + sessionID
}
