package loyalty

import (
	"regexp"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/epicure/pkg/enums/source"
	"github.com/google/uuid"
)

var mobilePattern = regexp.MustCompile(`^\d{10}$`)

// Customer is the loyalty aggregate. Purchases is a projection of
// PurchaseHistory and is rebuilt by normalize on every load and mutation.
type Customer struct {
	ID                uuid.UUID        `json:"id" bson:"_id"`
	Mobile            string           `json:"mobile" bson:"mobile"`
	Name              string           `json:"name" bson:"name"`
	Purchases         []string         `json:"purchases" bson:"purchases"`
	PurchaseHistory   []PurchaseRecord `json:"purchaseHistory" bson:"purchase_history,omitempty"`
	CompletedRoadmaps []string         `json:"completedRoadmaps" bson:"completed_roadmaps"`
	Badges            []string         `json:"badges" bson:"badges"`
	CreatedAt         time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time        `json:"updatedAt" bson:"updated_at"`
	LastPurchaseAt    *time.Time       `json:"lastPurchaseAt,omitempty" bson:"last_purchase_at,omitempty"`
	IsAdmin           bool             `json:"isAdmin" bson:"is_admin"`
	CreatedBy         string           `json:"-" bson:"created_by,omitempty"`
	Version           int64            `json:"-" bson:"version"`
}

// PurchaseRecord is one purchase event. It is never modified after creation.
type PurchaseRecord struct {
	ID             uuid.UUID `json:"id" bson:"id"`
	Items          []string  `json:"items" bson:"items"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
	Source         string    `json:"source" bson:"source"`
	BillID         string    `json:"billId,omitempty" bson:"bill_id,omitempty"`
	BillHash       string    `json:"billHash,omitempty" bson:"bill_hash,omitempty"`
	IdempotencyKey string    `json:"-" bson:"idempotency_key,omitempty"`
}

// CustomerSummary is the login view of a customer.
type CustomerSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Mobile  string    `json:"mobile"`
	IsAdmin bool      `json:"isAdmin"`
}

func NewCustomer(mobile, name string) *Customer {
	c := &Customer{
		Mobile: mobile,
		Name:   strings.TrimSpace(name),
	}
	c.BeforeCreate()
	return c
}

func (c *Customer) GetID() uuid.UUID {
	return c.ID
}

func (c *Customer) ResourceType() string {
	return "customer"
}

func (c *Customer) EnsureID() {
	if c.ID == uuid.Nil {
		c.ID = apt.GenerateNewID()
	}
}

func (c *Customer) BeforeCreate() {
	c.EnsureID()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	c.normalize()
}

func (c *Customer) BeforeUpdate() {
	c.UpdatedAt = time.Now()
}

func (c *Customer) Summary() CustomerSummary {
	return CustomerSummary{
		ID:      c.ID,
		Name:    c.Name,
		Mobile:  c.Mobile,
		IsAdmin: c.IsAdmin,
	}
}

// Clone returns a deep copy of the aggregate.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	out := *c
	out.Purchases = append([]string{}, c.Purchases...)
	out.CompletedRoadmaps = append([]string{}, c.CompletedRoadmaps...)
	out.Badges = append([]string{}, c.Badges...)
	out.PurchaseHistory = make([]PurchaseRecord, len(c.PurchaseHistory))
	for i, rec := range c.PurchaseHistory {
		rec.Items = append([]string{}, rec.Items...)
		out.PurchaseHistory[i] = rec
	}
	if c.LastPurchaseAt != nil {
		t := *c.LastPurchaseAt
		out.LastPurchaseAt = &t
	}
	return &out
}

// HasCompleted reports whether the roadmap was already credited.
func (c *Customer) HasCompleted(roadmapID string) bool {
	for _, id := range c.CompletedRoadmaps {
		if id == roadmapID {
			return true
		}
	}
	return false
}

// normalize restores the aggregate invariants after a mutation.
func (c *Customer) normalize() {
	if c.PurchaseHistory == nil {
		c.PurchaseHistory = []PurchaseRecord{}
	}
	c.Purchases = flatten(c.PurchaseHistory)
	c.CompletedRoadmaps = dedupe(c.CompletedRoadmaps)
	c.Badges = dedupe(c.Badges)
}

// Normalize prepares a stored aggregate for use. Records written before
// purchase history existed carry only the flat list, or a flat list whose
// tail was later mirrored into history. The items history does not cover are
// folded into one synthetic manual record ahead of it so no purchase is lost.
func (c *Customer) Normalize() {
	if legacy := c.legacyItems(); len(legacy) > 0 {
		ts := c.CreatedAt
		if len(c.PurchaseHistory) == 0 && c.LastPurchaseAt != nil {
			ts = *c.LastPurchaseAt
		}
		rec := PurchaseRecord{
			ID:        legacyPurchaseID(c.ID),
			Items:     legacy,
			Timestamp: ts,
			Source:    source.Sources.Manual.Code(),
		}
		c.PurchaseHistory = append([]PurchaseRecord{rec}, c.PurchaseHistory...)
	}
	c.normalize()
}

// legacyItems returns the leading flat purchases that history does not
// account for. History must match the tail of the flat list exactly;
// otherwise the flat list is a stale projection and nothing is returned.
func (c *Customer) legacyItems() []string {
	flat := flatten(c.PurchaseHistory)
	offset := len(c.Purchases) - len(flat)
	if offset <= 0 {
		return nil
	}
	for i, item := range flat {
		if c.Purchases[offset+i] != item {
			return nil
		}
	}
	return append([]string{}, c.Purchases[:offset]...)
}

func legacyPurchaseID(customerID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("legacy-purchases:"+customerID.String()))
}

func flatten(history []PurchaseRecord) []string {
	out := []string{}
	for _, rec := range history {
		out = append(out, rec.Items...)
	}
	return out
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ValidateMobile checks the 10 digit mobile format.
func ValidateMobile(mobile string) error {
	if !mobilePattern.MatchString(mobile) {
		return ErrInvalidArgument
	}
	return nil
}
