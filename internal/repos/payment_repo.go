package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
)

type PaymentRepo struct{ db *sqlx.DB }

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentCols = `id, booking_id, provider, transaction_id, status, raw_response, created_at, updated_at`

type paymentRow struct {
	ID            string `db:"id"`
	BookingID     string `db:"booking_id"`
	Provider      string `db:"provider"`
	TransactionID string `db:"transaction_id"`
	Status        string `db:"status"`
	RawResponse   string `db:"raw_response"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r paymentRow) toDomain() (domain.Payment, error) {
	p := domain.Payment{
		ID:            r.ID,
		BookingID:     r.BookingID,
		Provider:      r.Provider,
		TransactionID: r.TransactionID,
		Status:        domain.PaymentStatus(r.Status),
		RawResponse:   json.RawMessage(r.RawResponse),
	}
	if r.RawResponse == "" {
		p.RawResponse = json.RawMessage(`{}`)
	}
	var err error
	if p.CreatedAt, err = parseTS(r.CreatedAt); err != nil {
		return p, err
	}
	p.UpdatedAt, err = parseTS(r.UpdatedAt)
	return p, err
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func (r *PaymentRepo) Insert(ctx context.Context, ex sqlx.ExecerContext, p domain.Payment) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO payments(`+paymentCols+`)
		VALUES(?,?,?,?,?,?,?,?)`,
		p.ID, p.BookingID, p.Provider, p.TransactionID, string(p.Status),
		rawText(p.RawResponse), ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

func (r *PaymentRepo) Get(ctx context.Context, q sqlx.QueryerContext, id string) (domain.Payment, error) {
	return r.getOne(ctx, q, `SELECT `+paymentCols+` FROM payments WHERE id=?`, id)
}

// ByTransaction resolves the idempotency key of a provider callback.
func (r *PaymentRepo) ByTransaction(ctx context.Context, q sqlx.QueryerContext, provider, transactionID string) (domain.Payment, error) {
	return r.getOne(ctx, q, `SELECT `+paymentCols+` FROM payments WHERE transaction_id=? AND provider=?`, transactionID, provider)
}

// GetForUser loads a payment of the given provider whose booking belongs to userID.
func (r *PaymentRepo) GetForUser(ctx context.Context, id, provider, userID string) (domain.Payment, error) {
	return r.getOne(ctx, r.db, `
		SELECT p.id, p.booking_id, p.provider, p.transaction_id, p.status, p.raw_response, p.created_at, p.updated_at
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		WHERE p.id=? AND p.provider=? AND b.user_id=?`, id, provider, userID)
}

// LatestPending returns the most recent pending payment for (booking, provider).
func (r *PaymentRepo) LatestPending(ctx context.Context, q sqlx.QueryerContext, bookingID, provider string) (domain.Payment, error) {
	return r.getOne(ctx, q, `
		SELECT `+paymentCols+`
		FROM payments
		WHERE booking_id=? AND provider=? AND status=?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, bookingID, provider, string(domain.PaymentPending))
}

// HasSuccess reports whether the booking already has a successful payment
// other than exceptID.
func (r *PaymentRepo) HasSuccess(ctx context.Context, q sqlx.QueryerContext, bookingID, exceptID string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok,
		`SELECT EXISTS(SELECT 1 FROM payments WHERE booking_id=? AND status=? AND id<>?)`,
		bookingID, string(domain.PaymentSuccess), exceptID)
	return ok, err
}

func (r *PaymentRepo) CountForBooking(ctx context.Context, q sqlx.QueryerContext, bookingID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM payments WHERE booking_id=?`, bookingID)
	return n, err
}

// UpdateOutcome overwrites status and raw_response of a payment.
func (r *PaymentRepo) UpdateOutcome(ctx context.Context, ex sqlx.ExecerContext, id string, status domain.PaymentStatus, raw json.RawMessage, at time.Time) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE payments SET status=?, raw_response=?, updated_at=? WHERE id=?`,
		string(status), rawText(raw), ts(at), id)
	return err
}

// UpdateRaw records a payload without touching status.
func (r *PaymentRepo) UpdateRaw(ctx context.Context, ex sqlx.ExecerContext, id string, raw json.RawMessage, at time.Time) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE payments SET raw_response=?, updated_at=? WHERE id=?`,
		rawText(raw), ts(at), id)
	return err
}

// ListLatest feeds the admin reconciliation audit.
func (r *PaymentRepo) ListLatest(ctx context.Context, limit int) ([]domain.Payment, error) {
	var rows []paymentRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT `+paymentCols+`
		FROM payments
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit); err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *PaymentRepo) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (domain.Payment, error) {
	var row paymentRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return domain.Payment{}, err
	}
	return row.toDomain()
}
