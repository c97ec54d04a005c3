package loyalty

import (
	"reflect"
	"testing"
	"time"

	"github.com/appetiteclub/epicure/pkg/enums/source"
	"github.com/google/uuid"
)

func TestNewCustomer(t *testing.T) {
	c := NewCustomer("9876543210", "  Asha ")

	if c.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("NewCustomer() should assign an id")
	}
	if c.Name != "Asha" {
		t.Errorf("Name = %q, want %q", c.Name, "Asha")
	}
	if c.Purchases == nil || c.PurchaseHistory == nil {
		t.Error("NewCustomer() should initialize purchase slices")
	}
	if c.CreatedAt.IsZero() || !c.CreatedAt.Equal(c.UpdatedAt) {
		t.Errorf("CreatedAt = %v, UpdatedAt = %v, want equal non zero", c.CreatedAt, c.UpdatedAt)
	}
}

func TestValidateMobile(t *testing.T) {
	tests := []struct {
		name    string
		mobile  string
		wantErr bool
	}{
		{name: "valid", mobile: "9876543210"},
		{name: "tooShort", mobile: "987654321", wantErr: true},
		{name: "tooLong", mobile: "98765432101", wantErr: true},
		{name: "letters", mobile: "98765x3210", wantErr: true},
		{name: "empty", mobile: "", wantErr: true},
		{name: "countryCode", mobile: "+919876543210", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMobile(tt.mobile)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMobile(%q) error = %v, wantErr %v", tt.mobile, err, tt.wantErr)
			}
		})
	}
}

func TestCustomerNormalize(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	last := created.Add(48 * time.Hour)

	tests := []struct {
		name          string
		customer      Customer
		wantPurchases []string
		wantHistory   int
		wantBadges    []string
	}{
		{
			name: "rebuildsFlatList",
			customer: Customer{
				Purchases: []string{"stale"},
				PurchaseHistory: []PurchaseRecord{
					{Items: []string{"Latte", "Americano"}},
					{Items: []string{"Latte"}},
				},
			},
			wantPurchases: []string{"Latte", "Americano", "Latte"},
			wantHistory:   2,
			wantBadges:    []string{},
		},
		{
			name: "foldsLegacyList",
			customer: Customer{
				Purchases:      []string{"Latte", "Cold Brew"},
				CreatedAt:      created,
				LastPurchaseAt: &last,
			},
			wantPurchases: []string{"Latte", "Cold Brew"},
			wantHistory:   1,
			wantBadges:    []string{},
		},
		{
			name: "dedupesBadges",
			customer: Customer{
				Badges:            []string{"☕ Hot Drinks Explorer", "☕ Hot Drinks Explorer"},
				CompletedRoadmaps: []string{"hot_drinks_explorer", "hot_drinks_explorer"},
			},
			wantPurchases: []string{},
			wantHistory:   0,
			wantBadges:    []string{"☕ Hot Drinks Explorer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.customer
			c.Normalize()

			if !reflect.DeepEqual(c.Purchases, tt.wantPurchases) {
				t.Errorf("Purchases = %v, want %v", c.Purchases, tt.wantPurchases)
			}
			if len(c.PurchaseHistory) != tt.wantHistory {
				t.Errorf("PurchaseHistory = %d records, want %d", len(c.PurchaseHistory), tt.wantHistory)
			}
			if !reflect.DeepEqual(c.Badges, tt.wantBadges) {
				t.Errorf("Badges = %v, want %v", c.Badges, tt.wantBadges)
			}
			if len(c.CompletedRoadmaps) > 1 {
				t.Errorf("CompletedRoadmaps = %v, want no duplicates", c.CompletedRoadmaps)
			}
		})
	}
}

func TestCustomerNormalizeLegacyRecord(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	last := created.Add(time.Hour)
	c := &Customer{Purchases: []string{"Latte"}, CreatedAt: created, LastPurchaseAt: &last}
	c.EnsureID()

	c.Normalize()
	first := c.PurchaseHistory[0]
	if first.Source != source.Sources.Manual.Code() {
		t.Errorf("legacy Source = %q, want %q", first.Source, source.Sources.Manual.Code())
	}
	if !first.Timestamp.Equal(last) {
		t.Errorf("legacy Timestamp = %v, want %v", first.Timestamp, last)
	}

	again := &Customer{ID: c.ID, Purchases: []string{"Latte"}, CreatedAt: created}
	again.Normalize()
	if again.PurchaseHistory[0].ID != first.ID {
		t.Error("legacy purchase id should be stable across loads")
	}
}

func TestCustomerNormalizeMixedLegacyRecord(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	recent := PurchaseRecord{
		ID:        uuid.New(),
		Items:     []string{"Cappuccino Med"},
		Timestamp: created.Add(48 * time.Hour),
		Source:    source.Sources.Barista.Code(),
	}

	tests := []struct {
		name          string
		purchases     []string
		history       []PurchaseRecord
		wantPurchases []string
		wantHistory   int
	}{
		{
			name:          "historyCoversTail",
			purchases:     []string{"Latte", "Americano", "Cappuccino Med"},
			history:       []PurchaseRecord{recent},
			wantPurchases: []string{"Latte", "Americano", "Cappuccino Med"},
			wantHistory:   2,
		},
		{
			name:          "inSync",
			purchases:     []string{"Cappuccino Med"},
			history:       []PurchaseRecord{recent},
			wantPurchases: []string{"Cappuccino Med"},
			wantHistory:   1,
		},
		{
			name:          "staleFlatList",
			purchases:     []string{"Latte", "Mocha"},
			history:       []PurchaseRecord{recent},
			wantPurchases: []string{"Cappuccino Med"},
			wantHistory:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Customer{
				Purchases:       append([]string{}, tt.purchases...),
				PurchaseHistory: append([]PurchaseRecord{}, tt.history...),
				CreatedAt:       created,
			}
			c.EnsureID()

			c.Normalize()
			if !reflect.DeepEqual(c.Purchases, tt.wantPurchases) {
				t.Errorf("Purchases = %v, want %v", c.Purchases, tt.wantPurchases)
			}
			if len(c.PurchaseHistory) != tt.wantHistory {
				t.Fatalf("PurchaseHistory = %d records, want %d", len(c.PurchaseHistory), tt.wantHistory)
			}
			if tt.wantHistory == 2 {
				first := c.PurchaseHistory[0]
				if first.ID != legacyPurchaseID(c.ID) || first.Source != source.Sources.Manual.Code() {
					t.Errorf("folded record = %+v, want synthetic manual record", first)
				}
				if !first.Timestamp.Equal(created) {
					t.Errorf("folded Timestamp = %v, want %v", first.Timestamp, created)
				}
			}

			c.Normalize()
			if len(c.PurchaseHistory) != tt.wantHistory {
				t.Errorf("second Normalize() history = %d records, want %d", len(c.PurchaseHistory), tt.wantHistory)
			}
		})
	}
}

func TestCustomerNormalizeAfterRemovingEverything(t *testing.T) {
	c := NewCustomer("9876543210", "Asha")
	rec, _, err := RecordPurchase(c, PurchaseInput{Items: []string{"Latte"}, Source: "scanner"}, time.Now())
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}
	RemovePurchase(c, rec.ID)

	c.Normalize()
	if len(c.Purchases) != 0 || len(c.PurchaseHistory) != 0 {
		t.Errorf("Normalize() after removing all purchases = %v / %v, want empty", c.Purchases, c.PurchaseHistory)
	}
}

func TestCustomerClone(t *testing.T) {
	now := time.Now()
	c := NewCustomer("9876543210", "Asha")
	c.PurchaseHistory = []PurchaseRecord{{Items: []string{"Latte"}}}
	c.Badges = []string{"☕ Hot Drinks Explorer"}
	c.LastPurchaseAt = &now
	c.normalize()

	cp := c.Clone()
	cp.PurchaseHistory[0].Items[0] = "Mocha"
	cp.Badges[0] = "changed"
	*cp.LastPurchaseAt = now.Add(time.Hour)

	if c.PurchaseHistory[0].Items[0] != "Latte" {
		t.Error("Clone() shares purchase items with the original")
	}
	if c.Badges[0] != "☕ Hot Drinks Explorer" {
		t.Error("Clone() shares badges with the original")
	}
	if !c.LastPurchaseAt.Equal(now) {
		t.Error("Clone() shares LastPurchaseAt with the original")
	}

	var nilCustomer *Customer
	if nilCustomer.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}
