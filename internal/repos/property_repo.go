package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
)

type PropertyRepo struct{ db *sqlx.DB }

func NewPropertyRepo(db *sqlx.DB) *PropertyRepo { return &PropertyRepo{db: db} }

const propertyCols = `id, category_id, name, location, price, status, created_at`

// Get reads a property through q so it can participate in a reservation tx.
func (r *PropertyRepo) Get(ctx context.Context, q sqlx.QueryerContext, id string) (domain.Property, error) {
	var p domain.Property
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+propertyCols+` FROM properties WHERE id=?`, id)
	return p, err
}

// ListActiveInCategories returns active properties whose category is one of
// categoryIDs, newest first, skipping excludeID.
func (r *PropertyRepo) ListActiveInCategories(ctx context.Context, categoryIDs []string, excludeID string, limit int) ([]domain.Property, error) {
	out := []domain.Property{}
	if len(categoryIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
		SELECT `+propertyCols+`
		FROM properties
		WHERE status = ? AND category_id IN (?) AND id <> ?
		ORDER BY created_at DESC, id
		LIMIT ?`, domain.PropertyActive, categoryIDs, excludeID, limit)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...)
	return out, err
}

func (r *PropertyRepo) SetStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE properties SET status=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, status, id)
	return err
}
