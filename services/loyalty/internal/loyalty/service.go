package loyalty

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/epicure/pkg/enums/source"
	"github.com/appetiteclub/epicure/pkg/event"
	"github.com/google/uuid"
)

const maxSaveAttempts = 25

// errNoChange aborts a mutation without saving.
var errNoChange = errors.New("no change")

type Repos struct {
	CustomerRepo CustomerRepo
	OTPRepo      OTPRepo
	AdminRepo    AdminRepo
	BillRepo     BillRepo
}

type ServiceDeps struct {
	Repos Repos
	// LedgerPublisher receives purchase and roadmap events.
	LedgerPublisher events.Publisher
	// OTPPublisher receives login codes for SMS delivery.
	OTPPublisher events.Publisher
}

// Service runs every customer mutation. Writes go through a versioned
// compare-and-swap so concurrent writers on any instance never lose updates.
type Service struct {
	customers    CustomerRepo
	otps         OTPRepo
	admins       AdminRepo
	guard        *BillGuard
	ledgerEvents events.Publisher
	otpEvents    events.Publisher
	settings     Settings
	roadmaps     []Roadmap
	logger       apt.Logger
	now          func() time.Time
	newCode      func() (string, error)
}

// CustomerRef selects a customer by id or, when ID is nil, by mobile.
type CustomerRef struct {
	ID     uuid.UUID
	Mobile string
}

func ByID(id uuid.UUID) CustomerRef {
	return CustomerRef{ID: id}
}

func ByMobile(mobile string) CustomerRef {
	return CustomerRef{Mobile: mobile}
}

func (r CustomerRef) String() string {
	if r.ID != uuid.Nil {
		return r.ID.String()
	}
	return r.Mobile
}

// PurchaseResult is the outcome of a recorded purchase.
type PurchaseResult struct {
	Customer    *Customer
	Purchase    *PurchaseRecord
	NewRoadmaps []Roadmap
	Appended    bool
}

// ScanRequest is a bill scan submitted by a customer or by staff on their behalf.
type ScanRequest struct {
	Items          []string
	ScannedText    string
	BillHash       string
	StaffCode      string
	IdempotencyKey string
}

func NewService(deps ServiceDeps, settings Settings, logger apt.Logger) *Service {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Service{
		customers:    deps.Repos.CustomerRepo,
		otps:         deps.Repos.OTPRepo,
		admins:       deps.Repos.AdminRepo,
		guard:        NewBillGuard(deps.Repos.BillRepo, logger),
		ledgerEvents: deps.LedgerPublisher,
		otpEvents:    deps.OTPPublisher,
		settings:     settings,
		roadmaps:     Roadmaps(),
		logger:       logger,
		now:          time.Now,
		newCode:      generateOTPCode,
	}
}

func (s *Service) Settings() Settings {
	return s.settings
}

func (s *Service) RoadmapDefinitions() []Roadmap {
	return append([]Roadmap{}, s.roadmaps...)
}

// Customer reads

func (s *Service) GetCustomer(ctx context.Context, ref CustomerRef) (*Customer, error) {
	c, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("customer %s: %w", ref, ErrNotFound)
	}
	return c, nil
}

// CustomerExists reports whether mobile belongs to a registered customer.
func (s *Service) CustomerExists(ctx context.Context, mobile string) (bool, error) {
	if err := ValidateMobile(mobile); err != nil {
		return false, fmt.Errorf("%w: mobile must be 10 digits", ErrInvalidArgument)
	}
	c, err := s.load(ctx, ByMobile(mobile))
	if err != nil {
		return false, err
	}
	return c != nil, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]*Customer, error) {
	list, err := s.customers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list customers: %w", ErrStorage, err)
	}
	return list, nil
}

func (s *Service) Progress(ctx context.Context, ref CustomerRef) ([]RoadmapProgress, error) {
	c, err := s.GetCustomer(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Progress(c, s.roadmaps), nil
}

// Purchases

// RecordPurchase appends a purchase to the customer and credits any roadmap
// it completes.
func (s *Service) RecordPurchase(ctx context.Context, ref CustomerRef, in PurchaseInput) (*PurchaseResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var res PurchaseResult
	c, err := s.mutate(ctx, ref, func(c *Customer) error {
		rec, appended, err := RecordPurchase(c, in, s.now())
		if err != nil {
			return err
		}
		res = PurchaseResult{Purchase: rec, Appended: appended}
		if !appended {
			return errNoChange
		}
		res.NewRoadmaps = Evaluate(c, s.roadmaps)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Customer = c

	if res.Appended {
		s.logger.Info("purchase recorded",
			"customer_id", c.ID.String(),
			"purchase_id", res.Purchase.ID.String(),
			"source", in.Source,
			"items", len(in.Items))
		s.publishPurchase(ctx, c, res.Purchase)
		for _, rm := range res.NewRoadmaps {
			s.publishRoadmap(ctx, c, rm)
		}
	}
	return &res, nil
}

// ScanBill credits a scanned bill. With a staff code the purchase is recorded
// as manual entry; the code must match. A bill hash, given or derived from the
// scanned text, is claimed before crediting and released if crediting fails.
func (s *Service) ScanBill(ctx context.Context, id uuid.UUID, req ScanRequest) (*PurchaseResult, error) {
	if _, err := s.GetCustomer(ctx, ByID(id)); err != nil {
		return nil, err
	}

	src := source.Sources.Scanner.Code()
	if strings.TrimSpace(req.StaffCode) != "" {
		if !s.VerifyStaffCode(req.StaffCode) {
			return nil, fmt.Errorf("%w: invalid staff code", ErrUnauthorized)
		}
		src = source.Sources.Manual.Code()
	}

	in := PurchaseInput{
		Items:          req.Items,
		Source:         src,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash := strings.TrimSpace(req.BillHash)
	if hash == "" {
		hash = BillHash(req.ScannedText)
	}
	if hash != "" {
		if err := s.guard.CheckAndRegister(ctx, hash, id); err != nil {
			return nil, err
		}
		in.BillHash = hash
		in.BillID = fmt.Sprintf("bill_%d", s.now().UnixMilli())
	}

	res, err := s.RecordPurchase(ctx, ByID(id), in)
	if err != nil {
		if hash != "" {
			s.releaseUncredited(context.WithoutCancel(ctx), id, hash, err)
		}
		return nil, err
	}
	if !res.Appended && hash != "" {
		s.guard.Release(context.WithoutCancel(ctx), hash)
	}
	return res, nil
}

// releaseUncredited frees a bill claim after a failed credit. A storage error
// may follow an applied write, so then the claim is kept unless the stored
// customer shows the bill was not credited.
func (s *Service) releaseUncredited(ctx context.Context, id uuid.UUID, hash string, cause error) {
	if errors.Is(cause, ErrStorage) {
		c, err := s.load(ctx, ByID(id))
		if err != nil {
			s.logger.Error("keeping bill claim, credit state unknown",
				"bill_hash", hash, "customer_id", id.String(), "error", err)
			return
		}
		if c != nil && hasBill(c, hash) {
			s.logger.Info("keeping bill claim, purchase was stored",
				"bill_hash", hash, "customer_id", id.String())
			return
		}
	}
	s.guard.Release(ctx, hash)
}

func hasBill(c *Customer, hash string) bool {
	for _, rec := range c.PurchaseHistory {
		if rec.BillHash == hash {
			return true
		}
	}
	return false
}

// RemovePurchase deletes one purchase event and rebuilds the flat list.
// Unknown ids leave the customer unchanged. Earned badges are kept.
func (s *Service) RemovePurchase(ctx context.Context, ref CustomerRef, purchaseID uuid.UUID, actor string) (*Customer, error) {
	var removed PurchaseRecord
	c, err := s.mutate(ctx, ref, func(c *Customer) error {
		rec, ok := FindPurchase(c, purchaseID)
		if !ok {
			return errNoChange
		}
		removed = rec
		RemovePurchase(c, purchaseID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed.ID != uuid.Nil {
		s.logger.Info("purchase removed",
			"customer_id", c.ID.String(),
			"purchase_id", purchaseID.String(),
			"actor", actor)
		s.publishLedger(ctx, event.LedgerEvent{
			EventType:  event.EventPurchaseRemoved,
			CustomerID: c.ID.String(),
			Mobile:     c.Mobile,
			PurchaseID: removed.ID.String(),
			Items:      removed.Items,
			Source:     removed.Source,
			BillHash:   removed.BillHash,
			Actor:      actor,
		})
	}
	return c, nil
}

// CompleteRoadmap credits a roadmap after checking its requirements against
// the stored purchases. A roadmap already credited is left as is.
func (s *Service) CompleteRoadmap(ctx context.Context, id uuid.UUID, roadmapID string) (*Customer, error) {
	roadmapID = strings.TrimSpace(roadmapID)
	if roadmapID == "" {
		return nil, fmt.Errorf("%w: roadmapId is required", ErrInvalidArgument)
	}
	rm, ok := RoadmapByID(roadmapID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", roadmapID, ErrRoadmapNotFound)
	}

	granted := false
	c, err := s.mutate(ctx, ByID(id), func(c *Customer) error {
		if c.HasCompleted(rm.ID) {
			return errNoChange
		}
		if !rm.Satisfied(c.Purchases) {
			return fmt.Errorf("%w: roadmap %s requirements not met", ErrInvalidArgument, rm.ID)
		}
		grantRoadmap(c, rm)
		granted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if granted {
		s.publishRoadmap(ctx, c, rm)
	}
	return c, nil
}

// VerifyStaffCode checks a staff authorization code.
func (s *Service) VerifyStaffCode(code string) bool {
	expected := s.settings.StaffCode
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(expected)) == 1
}

// Admins

// IsAdmin reports whether mobile holds admin rights.
func (s *Service) IsAdmin(ctx context.Context, mobile string) (bool, error) {
	if mobile == "" {
		return false, nil
	}
	if mobile == s.settings.MasterAdminMobile {
		return true, nil
	}
	if s.admins == nil {
		return false, nil
	}
	g, err := s.admins.Get(ctx, mobile)
	if err != nil {
		return false, fmt.Errorf("%w: lookup admin: %w", ErrStorage, err)
	}
	return g != nil, nil
}

// AuthorizeAdmin fails with ErrUnauthorized unless mobile is an admin.
func (s *Service) AuthorizeAdmin(ctx context.Context, mobile string) error {
	ok, err := s.IsAdmin(ctx, strings.TrimSpace(mobile))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: admin access required", ErrUnauthorized)
	}
	return nil
}

func (s *Service) GrantAdmin(ctx context.Context, actor, mobile string) error {
	if err := ValidateMobile(mobile); err != nil {
		return fmt.Errorf("%w: mobile must be 10 digits", ErrInvalidArgument)
	}
	if err := s.admins.Grant(ctx, &AdminGrant{
		Mobile:    mobile,
		GrantedBy: actor,
		GrantedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("%w: grant admin: %w", ErrStorage, err)
	}
	s.logger.Info("admin granted", "mobile", mobile, "actor", actor)
	return s.setAdminFlag(ctx, mobile, true)
}

func (s *Service) RevokeAdmin(ctx context.Context, actor, mobile string) error {
	if err := ValidateMobile(mobile); err != nil {
		return fmt.Errorf("%w: mobile must be 10 digits", ErrInvalidArgument)
	}
	if mobile == s.settings.MasterAdminMobile {
		return ErrMasterAdmin
	}
	if err := s.admins.Revoke(ctx, mobile); err != nil {
		return fmt.Errorf("%w: revoke admin: %w", ErrStorage, err)
	}
	s.logger.Info("admin revoked", "mobile", mobile, "actor", actor)
	return s.setAdminFlag(ctx, mobile, false)
}

// ListAdmins returns all grants. The master admin is always listed first.
func (s *Service) ListAdmins(ctx context.Context) ([]*AdminGrant, error) {
	grants, err := s.admins.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list admins: %w", ErrStorage, err)
	}
	out := []*AdminGrant{{Mobile: s.settings.MasterAdminMobile, GrantedBy: "system"}}
	for _, g := range grants {
		if g.Mobile == s.settings.MasterAdminMobile {
			out[0] = g
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Service) setAdminFlag(ctx context.Context, mobile string, admin bool) error {
	_, err := s.mutate(ctx, ByMobile(mobile), func(c *Customer) error {
		if c.IsAdmin == admin {
			return errNoChange
		}
		c.IsAdmin = admin
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		// The grant applies when the customer registers.
		return nil
	}
	return err
}

// Storage helpers

func (s *Service) load(ctx context.Context, ref CustomerRef) (*Customer, error) {
	if s.customers == nil {
		return nil, fmt.Errorf("%w: customer repository not configured", ErrStorage)
	}

	var (
		c   *Customer
		err error
	)
	if ref.ID != uuid.Nil {
		c, err = s.customers.Get(ctx, ref.ID)
	} else {
		if vErr := ValidateMobile(ref.Mobile); vErr != nil {
			return nil, fmt.Errorf("%w: mobile must be 10 digits", ErrInvalidArgument)
		}
		c, err = s.customers.GetByMobile(ctx, ref.Mobile)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load customer: %w", ErrStorage, err)
	}
	if c != nil {
		c.Normalize()
	}
	return c, nil
}

// mutate loads the customer, applies fn and saves the result, retrying on
// version conflicts. fn returning errNoChange ends the call without a write.
func (s *Service) mutate(ctx context.Context, ref CustomerRef, fn func(c *Customer) error) (*Customer, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		c, err := s.load(ctx, ref)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("customer %s: %w", ref, ErrNotFound)
		}

		if err := fn(c); err != nil {
			if errors.Is(err, errNoChange) {
				return c, nil
			}
			return nil, err
		}

		c.BeforeUpdate()
		err = s.customers.Save(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("%w: save customer: %w", ErrStorage, err)
		}

		s.logger.Debug("customer changed concurrently, retrying", "customer", ref.String(), "attempt", attempt)
		if err := backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: customer %s kept changing, giving up", ErrStorage, ref)
}

func backoff(ctx context.Context, attempt int) error {
	d := time.Duration(rand.IntN(attempt*2)+1) * time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Events

func (s *Service) publishPurchase(ctx context.Context, c *Customer, rec *PurchaseRecord) {
	s.publishLedger(ctx, event.LedgerEvent{
		EventType:  event.EventPurchaseRecorded,
		CustomerID: c.ID.String(),
		Mobile:     c.Mobile,
		PurchaseID: rec.ID.String(),
		Items:      rec.Items,
		Source:     rec.Source,
		BillHash:   rec.BillHash,
	})
}

func (s *Service) publishRoadmap(ctx context.Context, c *Customer, rm Roadmap) {
	s.logger.Info("roadmap completed", "customer_id", c.ID.String(), "roadmap_id", rm.ID, "badge", rm.Badge)
	s.publishLedger(ctx, event.LedgerEvent{
		EventType:  event.EventRoadmapCompleted,
		CustomerID: c.ID.String(),
		Mobile:     c.Mobile,
		RoadmapID:  rm.ID,
		Badge:      rm.Badge,
		Reward:     rm.Reward,
	})
}

// publishLedger is best effort: the change is already stored.
func (s *Service) publishLedger(ctx context.Context, evt event.LedgerEvent) {
	if s.ledgerEvents == nil {
		return
	}
	evt.OccurredAt = s.now()
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("cannot encode ledger event", "event_type", evt.EventType, "error", err)
		return
	}
	if err := s.ledgerEvents.Publish(ctx, event.LedgerTopic, payload); err != nil {
		s.logger.Error("cannot publish ledger event", "event_type", evt.EventType, "error", err)
	}
}
