package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/domain"
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// List returns every category in insertion order, so that child lists built
// from it are stable between rebuilds.
func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := r.db.SelectContext(ctx, &out, `
  SELECT
    id,
    name,
    COALESCE(parent_id,'') AS parent_id,
    created_at,
    COALESCE(updated_at,'') AS updated_at
  FROM categories
  ORDER BY created_at, id
`)
	return out, err
}

func (r *CategoryRepo) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS(SELECT 1 FROM categories WHERE id=?)`, id)
	return ok, err
}

// Insert is used by tests and admin tooling to grow the tree.
func (r *CategoryRepo) Insert(ctx context.Context, c domain.Category) error {
	var parent any
	if c.ParentID != "" {
		parent = c.ParentID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories(id,name,parent_id,created_at) VALUES(?,?,?,?)`,
		c.ID, c.Name, parent, c.CreatedAt)
	return err
}
