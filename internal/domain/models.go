package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	ParentID  string `db:"parent_id" json:"parent_id,omitempty"` // "" for roots
	CreatedAt string `db:"created_at" json:"created_at"`
	UpdatedAt string `db:"updated_at" json:"updated_at,omitempty"`
}

const (
	PropertyActive   = "active"
	PropertyInactive = "inactive"
)

type Property struct {
	ID         string          `db:"id" json:"id"`
	CategoryID string          `db:"category_id" json:"category_id"`
	Name       string          `db:"name" json:"name"`
	Location   string          `db:"location" json:"location"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Status     string          `db:"status" json:"status"` // active | inactive
	CreatedAt  string          `db:"created_at" json:"created_at"`
}

func (p Property) Active() bool { return p.Status == PropertyActive }

type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingPaid     BookingStatus = "paid"
	BookingCanceled BookingStatus = "canceled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s BookingStatus) Terminal() bool { return s == BookingPaid || s == BookingCanceled }

// Holds reports whether a booking in status s occupies its slot.
func (s BookingStatus) Holds() bool { return s == BookingPending || s == BookingPaid }

// Booking reserves the half-open window [StartAt, EndAt) on a property.
type Booking struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	PropertyID  string          `json:"property_id"`
	StartAt     time.Time       `json:"start_at"`
	EndAt       time.Time       `json:"end_at"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      BookingStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Overlaps uses half-open semantics: touching endpoints do not overlap.
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartAt.Before(end) && b.EndAt.After(start)
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool { return s == PaymentSuccess || s == PaymentFailed }

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentSuccess, PaymentFailed:
		return true
	}
	return false
}

type Payment struct {
	ID            string          `json:"id"`
	BookingID     string          `json:"booking_id"`
	Provider      string          `json:"provider"`
	TransactionID string          `json:"transaction_id"`
	Status        PaymentStatus   `json:"status"`
	RawResponse   json.RawMessage `json:"raw_response"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
