package loyalty

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRecordPurchase(t *testing.T) {
	tests := []struct {
		name    string
		input   PurchaseInput
		wantErr error
	}{
		{
			name:  "scanner",
			input: PurchaseInput{Items: []string{"Latte"}, Source: "scanner"},
		},
		{
			name:  "baristaWithRepeats",
			input: PurchaseInput{Items: []string{"Latte", "Latte"}, Source: "barista"},
		},
		{
			name:    "emptyItems",
			input:   PurchaseInput{Source: "scanner"},
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "blankItem",
			input:   PurchaseInput{Items: []string{"Latte", "  "}, Source: "manual"},
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "unknownSource",
			input:   PurchaseInput{Items: []string{"Latte"}, Source: "kiosk"},
			wantErr: ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCustomer("9876543210", "Asha")
			now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

			rec, appended, err := RecordPurchase(c, tt.input, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RecordPurchase() error = %v, want %v", err, tt.wantErr)
				}
				if len(c.PurchaseHistory) != 0 {
					t.Error("RecordPurchase() should not append on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("RecordPurchase() error = %v", err)
			}
			if !appended {
				t.Error("RecordPurchase() appended = false, want true")
			}
			if rec.ID == uuid.Nil {
				t.Error("RecordPurchase() should assign a purchase id")
			}
			if !reflect.DeepEqual(c.Purchases, tt.input.Items) {
				t.Errorf("Purchases = %v, want %v", c.Purchases, tt.input.Items)
			}
			if c.LastPurchaseAt == nil || !c.LastPurchaseAt.Equal(now) {
				t.Errorf("LastPurchaseAt = %v, want %v", c.LastPurchaseAt, now)
			}
		})
	}
}

func TestRecordPurchaseProjection(t *testing.T) {
	c := NewCustomer("9876543210", "Asha")
	batches := [][]string{{"Latte", "Americano"}, {"Cold Brew"}, {"Latte"}}

	var want []string
	for _, items := range batches {
		if _, _, err := RecordPurchase(c, PurchaseInput{Items: items, Source: "scanner"}, time.Now()); err != nil {
			t.Fatalf("RecordPurchase() error = %v", err)
		}
		want = append(want, items...)

		if !reflect.DeepEqual(c.Purchases, flatten(c.PurchaseHistory)) {
			t.Fatalf("Purchases = %v, history flattens to %v", c.Purchases, flatten(c.PurchaseHistory))
		}
	}
	if !reflect.DeepEqual(c.Purchases, want) {
		t.Errorf("Purchases = %v, want %v", c.Purchases, want)
	}
}

func TestRecordPurchaseIdempotencyKey(t *testing.T) {
	c := NewCustomer("9876543210", "Asha")
	in := PurchaseInput{Items: []string{"Latte"}, Source: "barista", IdempotencyKey: "req-1"}

	first, appended, err := RecordPurchase(c, in, time.Now())
	if err != nil || !appended {
		t.Fatalf("first RecordPurchase() = %v, %v", appended, err)
	}

	second, appended, err := RecordPurchase(c, in, time.Now())
	if err != nil {
		t.Fatalf("second RecordPurchase() error = %v", err)
	}
	if appended {
		t.Error("second RecordPurchase() appended = true, want false")
	}
	if second.ID != first.ID {
		t.Errorf("second RecordPurchase() id = %s, want %s", second.ID, first.ID)
	}
	if len(c.PurchaseHistory) != 1 {
		t.Errorf("PurchaseHistory = %d records, want 1", len(c.PurchaseHistory))
	}
}

func TestRemovePurchase(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	setup := func() (*Customer, []*PurchaseRecord) {
		c := NewCustomer("9876543210", "Asha")
		var recs []*PurchaseRecord
		for i, items := range [][]string{{"Latte", "Americano"}, {"Cappuccino Med"}, {"Latte"}} {
			rec, _, err := RecordPurchase(c, PurchaseInput{Items: items, Source: "scanner"}, base.Add(time.Duration(i)*time.Hour))
			if err != nil {
				t.Fatalf("RecordPurchase() error = %v", err)
			}
			recs = append(recs, rec)
		}
		Evaluate(c, Roadmaps())
		return c, recs
	}

	tests := []struct {
		name          string
		remove        func(recs []*PurchaseRecord) uuid.UUID
		wantRemoved   bool
		wantPurchases []string
	}{
		{
			name:          "middleRecord",
			remove:        func(recs []*PurchaseRecord) uuid.UUID { return recs[1].ID },
			wantRemoved:   true,
			wantPurchases: []string{"Latte", "Americano", "Latte"},
		},
		{
			name:          "lastRecord",
			remove:        func(recs []*PurchaseRecord) uuid.UUID { return recs[2].ID },
			wantRemoved:   true,
			wantPurchases: []string{"Latte", "Americano", "Cappuccino Med"},
		},
		{
			name:          "unknownID",
			remove:        func([]*PurchaseRecord) uuid.UUID { return uuid.New() },
			wantPurchases: []string{"Latte", "Americano", "Cappuccino Med", "Latte"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, recs := setup()
			badges := append([]string{}, c.Badges...)
			roadmaps := append([]string{}, c.CompletedRoadmaps...)

			removed := RemovePurchase(c, tt.remove(recs))
			if removed != tt.wantRemoved {
				t.Errorf("RemovePurchase() = %v, want %v", removed, tt.wantRemoved)
			}
			if !reflect.DeepEqual(c.Purchases, tt.wantPurchases) {
				t.Errorf("Purchases = %v, want %v", c.Purchases, tt.wantPurchases)
			}
			if c.LastPurchaseAt == nil || !c.LastPurchaseAt.Equal(base.Add(2*time.Hour)) {
				t.Errorf("LastPurchaseAt = %v, want time of the latest append %v", c.LastPurchaseAt, base.Add(2*time.Hour))
			}
			if !reflect.DeepEqual(c.Badges, badges) || !reflect.DeepEqual(c.CompletedRoadmaps, roadmaps) {
				t.Errorf("RemovePurchase() changed rewards: badges %v, roadmaps %v", c.Badges, c.CompletedRoadmaps)
			}
		})
	}
}

func TestRemovePurchaseKeepsHistoryOrder(t *testing.T) {
	c := NewCustomer("9876543210", "Asha")
	var ids []uuid.UUID
	for _, item := range []string{"Latte", "Mocha", "Americano", "Cold Brew"} {
		rec, _, err := RecordPurchase(c, PurchaseInput{Items: []string{item}, Source: "manual"}, time.Now())
		if err != nil {
			t.Fatalf("RecordPurchase() error = %v", err)
		}
		ids = append(ids, rec.ID)
	}

	RemovePurchase(c, ids[1])
	RemovePurchase(c, ids[3])

	want := []string{"Latte", "Americano"}
	if !reflect.DeepEqual(c.Purchases, want) {
		t.Errorf("Purchases = %v, want %v", c.Purchases, want)
	}

	last := *c.LastPurchaseAt
	RemovePurchase(c, ids[0])
	RemovePurchase(c, ids[2])
	if len(c.Purchases) != 0 {
		t.Errorf("after removing all: Purchases = %v", c.Purchases)
	}
	if c.LastPurchaseAt == nil || !c.LastPurchaseAt.Equal(last) {
		t.Errorf("after removing all: LastPurchaseAt = %v, want %v", c.LastPurchaseAt, last)
	}
}

func TestFindPurchase(t *testing.T) {
	c := NewCustomer("9876543210", "Asha")
	rec, _, _ := RecordPurchase(c, PurchaseInput{Items: []string{"Latte"}, Source: "scanner"}, time.Now())

	if got, ok := FindPurchase(c, rec.ID); !ok || got.ID != rec.ID {
		t.Errorf("FindPurchase(known) = %v, %v", got.ID, ok)
	}
	if _, ok := FindPurchase(c, uuid.New()); ok {
		t.Error("FindPurchase(unknown) should not find anything")
	}
}
