package handlers

import (
	"time"

	"github.com/omar4917/real-estate-project/internal/domain"
)

type bookingView struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	PropertyID  string               `json:"property_id"`
	StartAt     time.Time            `json:"start_at"`
	EndAt       time.Time            `json:"end_at"`
	TotalAmount string               `json:"total_amount"`
	Status      domain.BookingStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func toBookingView(b domain.Booking) bookingView {
	return bookingView{
		ID:          b.ID,
		UserID:      b.UserID,
		PropertyID:  b.PropertyID,
		StartAt:     b.StartAt.UTC(),
		EndAt:       b.EndAt.UTC(),
		TotalAmount: b.TotalAmount.StringFixed(2),
		Status:      b.Status,
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
}

type propertyView struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Price      string `json:"price"`
	Status     string `json:"status"`
}

func toPropertyView(p domain.Property) propertyView {
	return propertyView{
		ID:         p.ID,
		CategoryID: p.CategoryID,
		Name:       p.Name,
		Location:   p.Location,
		Price:      p.Price.StringFixed(2),
		Status:     p.Status,
	}
}
