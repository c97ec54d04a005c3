package loyalty

import (
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/epicure/pkg/enums/source"
	"github.com/google/uuid"
)

// PurchaseInput describes one purchase event to append.
type PurchaseInput struct {
	Items          []string
	Source         string
	BillID         string
	BillHash       string
	IdempotencyKey string
}

func (p PurchaseInput) validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: items must not be empty", ErrInvalidArgument)
	}
	for _, item := range p.Items {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%w: items must not contain blank names", ErrInvalidArgument)
		}
	}
	if !source.Valid(p.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidArgument, p.Source)
	}
	return nil
}

// RecordPurchase appends a purchase event to the aggregate. It returns the
// record and whether it was appended; a repeated idempotency key yields the
// existing record and leaves the aggregate untouched.
func RecordPurchase(c *Customer, in PurchaseInput, now time.Time) (*PurchaseRecord, bool, error) {
	if c == nil {
		return nil, false, ErrNotFound
	}
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	if in.IdempotencyKey != "" {
		for i := range c.PurchaseHistory {
			if c.PurchaseHistory[i].IdempotencyKey == in.IdempotencyKey {
				rec := c.PurchaseHistory[i]
				return &rec, false, nil
			}
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("generate purchase id: %w", err)
	}

	rec := PurchaseRecord{
		ID:             id,
		Items:          append([]string{}, in.Items...),
		Timestamp:      now,
		Source:         in.Source,
		BillID:         in.BillID,
		BillHash:       in.BillHash,
		IdempotencyKey: in.IdempotencyKey,
	}

	c.PurchaseHistory = append(c.PurchaseHistory, rec)
	ts := now
	c.LastPurchaseAt = &ts
	c.normalize()

	return &rec, true, nil
}

// RemovePurchase drops the record with the given id and rebuilds the flat
// purchase list from what remains. Unknown ids are a no-op. Completed
// roadmaps, badges and LastPurchaseAt are kept.
func RemovePurchase(c *Customer, purchaseID uuid.UUID) bool {
	if c == nil {
		return false
	}

	kept := make([]PurchaseRecord, 0, len(c.PurchaseHistory))
	removed := false
	for _, rec := range c.PurchaseHistory {
		if rec.ID == purchaseID {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return false
	}

	c.PurchaseHistory = kept
	c.normalize()
	return true
}

// FindPurchase returns the record with the given id, if present.
func FindPurchase(c *Customer, purchaseID uuid.UUID) (PurchaseRecord, bool) {
	for _, rec := range c.PurchaseHistory {
		if rec.ID == purchaseID {
			return rec, true
		}
	}
	return PurchaseRecord{}, false
}
