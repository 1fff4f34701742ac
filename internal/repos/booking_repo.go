package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/shopspring/decimal"
)

type BookingRepo struct{ db *sqlx.DB }

func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = `id, user_id, property_id, start_at, end_at, total_amount, status, created_at, updated_at`

type bookingRow struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	PropertyID  string          `db:"property_id"`
	StartAt     string          `db:"start_at"`
	EndAt       string          `db:"end_at"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	Status      string          `db:"status"`
	CreatedAt   string          `db:"created_at"`
	UpdatedAt   string          `db:"updated_at"`
}

func (r bookingRow) toDomain() (domain.Booking, error) {
	b := domain.Booking{
		ID:          r.ID,
		UserID:      r.UserID,
		PropertyID:  r.PropertyID,
		TotalAmount: r.TotalAmount,
		Status:      domain.BookingStatus(r.Status),
	}
	var err error
	if b.StartAt, err = parseTS(r.StartAt); err != nil {
		return b, err
	}
	if b.EndAt, err = parseTS(r.EndAt); err != nil {
		return b, err
	}
	if b.CreatedAt, err = parseTS(r.CreatedAt); err != nil {
		return b, err
	}
	b.UpdatedAt, err = parseTS(r.UpdatedAt)
	return b, err
}

// HasOverlap reports whether a slot-holding booking on propertyID intersects
// the half-open window [start, end).
func (r *BookingRepo) HasOverlap(ctx context.Context, q sqlx.QueryerContext, propertyID string, start, end time.Time) (bool, error) {
	var hit bool
	err := sqlx.GetContext(ctx, q, &hit, `
		SELECT EXISTS(
		  SELECT 1 FROM bookings
		  WHERE property_id = ?
		    AND status IN (?, ?)
		    AND start_at < ?
		    AND end_at > ?
		)`, propertyID, string(domain.BookingPending), string(domain.BookingPaid), ts(end), ts(start))
	return hit, err
}

func (r *BookingRepo) Insert(ctx context.Context, ex sqlx.ExecerContext, b domain.Booking) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO bookings(`+bookingCols+`)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		b.ID, b.UserID, b.PropertyID, ts(b.StartAt), ts(b.EndAt),
		b.TotalAmount.StringFixed(2), string(b.Status), ts(b.CreatedAt), ts(b.UpdatedAt))
	return err
}

func (r *BookingRepo) Get(ctx context.Context, q sqlx.QueryerContext, id string) (domain.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+bookingCols+` FROM bookings WHERE id=?`, id); err != nil {
		return domain.Booking{}, err
	}
	return row.toDomain()
}

// GetForUser hides bookings owned by someone else behind sql.ErrNoRows.
func (r *BookingRepo) GetForUser(ctx context.Context, q sqlx.QueryerContext, id, userID string) (domain.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+bookingCols+` FROM bookings WHERE id=? AND user_id=?`, id, userID); err != nil {
		return domain.Booking{}, err
	}
	return row.toDomain()
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	var rows []bookingRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE user_id=?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// TransitionStatus moves booking id to `to` only when its current status is
// one of `from`. It reports whether a row changed.
func (r *BookingRepo) TransitionStatus(ctx context.Context, ex sqlx.ExtContext, id string, to domain.BookingStatus, from []domain.BookingStatus, at time.Time) (bool, error) {
	fromS := make([]string, len(from))
	for i, s := range from {
		fromS[i] = string(s)
	}
	query, args, err := sqlx.In(`UPDATE bookings SET status=?, updated_at=? WHERE id=? AND status IN (?)`,
		string(to), ts(at), id, fromS)
	if err != nil {
		return false, err
	}
	res, err := ex.ExecContext(ctx, ex.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
