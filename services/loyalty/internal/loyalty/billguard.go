package loyalty

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

// BillGuard keeps a bill from being credited more than once.
type BillGuard struct {
	repo   BillRepo
	logger apt.Logger
	now    func() time.Time
}

func NewBillGuard(repo BillRepo, logger apt.Logger) *BillGuard {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &BillGuard{repo: repo, logger: logger, now: time.Now}
}

// CheckAndRegister claims billHash for the customer. A hash that is already
// claimed yields ErrDuplicateBill and nothing is written.
func (g *BillGuard) CheckAndRegister(ctx context.Context, billHash string, customerID uuid.UUID) error {
	billHash = strings.TrimSpace(billHash)
	if billHash == "" {
		return fmt.Errorf("%w: bill hash is required", ErrInvalidArgument)
	}
	if g.repo == nil {
		return fmt.Errorf("%w: bill repository not configured", ErrStorage)
	}

	err := g.repo.Register(ctx, &ScannedBill{
		BillHash:   billHash,
		CustomerID: customerID,
		ScannedAt:  g.now(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateBill):
		return g.duplicate(ctx, billHash, customerID)
	default:
		return fmt.Errorf("%w: register bill: %v", ErrStorage, err)
	}
}

// duplicate reports when, and by whom, billHash was first claimed. The lookup
// is best effort; ErrDuplicateBill is returned either way.
func (g *BillGuard) duplicate(ctx context.Context, billHash string, customerID uuid.UUID) error {
	first, err := g.repo.Get(ctx, billHash)
	if err != nil || first == nil {
		g.logger.Info("duplicate bill rejected", "bill_hash", billHash, "customer_id", customerID.String())
		return ErrDuplicateBill
	}
	g.logger.Info("duplicate bill rejected",
		"bill_hash", billHash,
		"customer_id", customerID.String(),
		"first_customer_id", first.CustomerID.String(),
		"same_customer", first.CustomerID == customerID)
	return fmt.Errorf("%w: first scanned at %s", ErrDuplicateBill, first.ScannedAt.UTC().Format(time.RFC3339))
}

// Release removes a claim whose purchase could not be credited.
func (g *BillGuard) Release(ctx context.Context, billHash string) {
	if g.repo == nil || billHash == "" {
		return
	}
	if err := g.repo.Release(ctx, billHash); err != nil {
		g.logger.Error("cannot release bill claim", "bill_hash", billHash, "error", err)
	}
}
