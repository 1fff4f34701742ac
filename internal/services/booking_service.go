package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/events"
	"github.com/omar4917/real-estate-project/internal/lock"
	"github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/payments"
	"github.com/omar4917/real-estate-project/internal/repos"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func propertyLockKey(id string) string { return "property:" + id }

// BookingService is the booking ledger: availability, reservation and cancel.
type BookingService struct {
	DB       *sqlx.DB
	Bookings *repos.BookingRepo
	Props    *repos.PropertyRepo
	Locks    *lock.Keyed
	Events   events.Publisher
	Now      func() time.Time
}

func NewBookingService(db *sqlx.DB, locks *lock.Keyed, pub events.Publisher) *BookingService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &BookingService{
		DB:       db,
		Bookings: repos.NewBookingRepo(db),
		Props:    repos.NewPropertyRepo(db),
		Locks:    locks,
		Events:   pub,
		Now:      time.Now,
	}
}

// storedInstant rounds t down to the precision of the bookings table so a
// window is validated and compared exactly as it will be persisted.
func storedInstant(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

// CheckAvailability reports whether [start, end) is free on the property.
func (s *BookingService) CheckAvailability(ctx context.Context, propertyID string, start, end time.Time) (bool, error) {
	start, end = storedInstant(start), storedInstant(end)
	if !end.After(start) {
		return false, ErrInvalidWindow
	}
	taken, err := s.Bookings.HasOverlap(ctx, s.DB, propertyID, start, end)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// Reserve books [start, end) for userID at the property's current price.
// The overlap check and insert run under the property lock and one tx.
func (s *BookingService) Reserve(ctx context.Context, userID, propertyID string, start, end time.Time) (domain.Booking, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "BookingService.Reserve")
	defer span.End()
	span.SetAttributes(attribute.String("property.id", propertyID))

	start, end = storedInstant(start), storedInstant(end)
	if !end.After(start) {
		return domain.Booking{}, ErrInvalidWindow
	}

	unlock, err := s.Locks.Lock(ctx, propertyLockKey(propertyID))
	if err != nil {
		return domain.Booking{}, err
	}
	defer unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Booking{}, err
	}
	defer func() { _ = tx.Rollback() }()

	prop, err := s.Props.Get(ctx, tx, propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	if !prop.Active() {
		return domain.Booking{}, ErrNotFound
	}

	taken, err := s.Bookings.HasOverlap(ctx, tx, propertyID, start, end)
	if err != nil {
		return domain.Booking{}, err
	}
	if taken {
		return domain.Booking{}, ErrSlotTaken
	}

	now := s.Now().UTC()
	b := domain.Booking{
		ID:          uuid.NewString(),
		UserID:      userID,
		PropertyID:  propertyID,
		StartAt:     start,
		EndAt:       end,
		TotalAmount: prop.Price,
		Status:      domain.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Bookings.Insert(ctx, tx, b); err != nil {
		return domain.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Booking{}, err
	}

	s.publish(ctx, events.BookingCreated, b)
	return b, nil
}

// Cancel moves a pending booking to canceled. Paid and canceled are sinks.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID string) (domain.Booking, error) {
	unlock, err := s.Locks.Lock(ctx, payments.BookingLockKey(bookingID))
	if err != nil {
		return domain.Booking{}, err
	}
	defer unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Booking{}, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := s.Bookings.GetForUser(ctx, tx, bookingID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	switch b.Status {
	case domain.BookingCanceled:
		return b, ErrAlreadyCanceled
	case domain.BookingPaid:
		return b, ErrCannotCancelPaid
	}

	now := s.Now().UTC()
	ok, err := s.Bookings.TransitionStatus(ctx, tx, b.ID, domain.BookingCanceled,
		[]domain.BookingStatus{domain.BookingPending}, now)
	if err != nil {
		return domain.Booking{}, err
	}
	if !ok {
		return b, ErrCannotCancelPaid
	}
	if err := tx.Commit(); err != nil {
		return domain.Booking{}, err
	}

	b.Status, b.UpdatedAt = domain.BookingCanceled, now
	s.publish(ctx, events.BookingCanceled, b)
	return b, nil
}

func (s *BookingService) ListForUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.Bookings.ListByUser(ctx, userID)
}

func (s *BookingService) publish(ctx context.Context, key string, b domain.Booking) {
	err := s.Events.PublishJSON(ctx, key, map[string]any{
		"booking_id":   b.ID,
		"user_id":      b.UserID,
		"property_id":  b.PropertyID,
		"start_at":     b.StartAt,
		"end_at":       b.EndAt,
		"total_amount": b.TotalAmount.StringFixed(2),
		"status":       b.Status,
	})
	if err != nil {
		log.Error(nil, "events.publish.fail", err, map[string]any{"key": key, "booking_id": b.ID})
	}
}
