package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CustomerRepo stores customer aggregates. Get and GetByMobile return nil, nil
// when nothing matches. Save only succeeds when the stored version equals
// c.Version, and advances it; otherwise it returns ErrVersionConflict.
type CustomerRepo interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id uuid.UUID) (*Customer, error)
	GetByMobile(ctx context.Context, mobile string) (*Customer, error)
	List(ctx context.Context) ([]*Customer, error)
	Save(ctx context.Context, c *Customer) error
}

// OTPSession is the single pending login code for a mobile.
type OTPSession struct {
	Mobile    string    `json:"mobile" bson:"_id"`
	CodeHash  []byte    `json:"-" bson:"code_hash"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expires_at"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// OTPRepo keeps one session per mobile; Put replaces any previous one.
type OTPRepo interface {
	Put(ctx context.Context, s *OTPSession) error
	Get(ctx context.Context, mobile string) (*OTPSession, error)
	Delete(ctx context.Context, mobile string) error
}

// AdminGrant marks a mobile as administrator.
type AdminGrant struct {
	Mobile    string    `json:"mobile" bson:"_id"`
	GrantedBy string    `json:"grantedBy" bson:"granted_by"`
	GrantedAt time.Time `json:"grantedAt" bson:"granted_at"`
}

type AdminRepo interface {
	Grant(ctx context.Context, g *AdminGrant) error
	Revoke(ctx context.Context, mobile string) error
	Get(ctx context.Context, mobile string) (*AdminGrant, error)
	List(ctx context.Context) ([]*AdminGrant, error)
}

// ScannedBill marks a bill hash as credited.
type ScannedBill struct {
	BillHash   string    `json:"billHash" bson:"_id"`
	CustomerID uuid.UUID `json:"customerId" bson:"customer_id"`
	ScannedAt  time.Time `json:"scannedAt" bson:"scanned_at"`
}

// BillRepo registers bill hashes. Register fails with ErrDuplicateBill when
// the hash exists, atomically with respect to concurrent callers.
type BillRepo interface {
	Register(ctx context.Context, b *ScannedBill) error
	Get(ctx context.Context, billHash string) (*ScannedBill, error)
	Release(ctx context.Context, billHash string) error
}
