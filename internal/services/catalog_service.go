package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/omar4917/real-estate-project/internal/catalog"
	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/repos"
)

const maxRecommendations = 10

type CatalogService struct {
	DB    *sqlx.DB
	Cats  *repos.CategoryRepo
	Props *repos.PropertyRepo
	Graph *catalog.GraphCache
}

func NewCatalogService(db *sqlx.DB, cats *repos.CategoryRepo, props *repos.PropertyRepo, graph *catalog.GraphCache) *CatalogService {
	return &CatalogService{DB: db, Cats: cats, Props: props, Graph: graph}
}

func (s *CatalogService) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	p, err := s.Props.Get(ctx, s.DB, id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// Recommendations lists active properties anywhere under the property's own
// category, newest first.
func (s *CatalogService) Recommendations(ctx context.Context, propertyID string) ([]domain.Property, error) {
	p, err := s.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrNotFound
	}
	ids, err := s.Graph.Subtree(ctx, p.CategoryID)
	if err != nil {
		return nil, err
	}
	return s.Props.ListActiveInCategories(ctx, ids, p.ID, maxRecommendations)
}

func (s *CatalogService) Descendants(ctx context.Context, categoryID string) ([]string, error) {
	ok, err := s.Cats.Exists(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.Graph.Subtree(ctx, categoryID)
}
