package models

import "time"

type Regime string

const (
	RegimeNearTerm Regime = "near_term"
	RegimeSameDay  Regime = "same_day"
	RegimeLongTerm Regime = "long_term"
)

// PriceQuote is the engine's output for one date. Nil MinPrice/MaxPrice
// mean flat pricing: every listing gets BasePrice, or its FlatPrices entry
// when the listing carries its own long-term premium.
type PriceQuote struct {
	ID             int64             `json:"id,omitempty"`
	RunID          string            `json:"runId,omitempty"`
	Property       string            `json:"property,omitempty"`
	Date           time.Time         `json:"date"`
	BasePrice      float64           `json:"basePrice"`
	CompositeScore *float64          `json:"compositeScore,omitempty"`
	MinPrice       *float64          `json:"minPrice,omitempty"`
	MaxPrice       *float64          `json:"maxPrice,omitempty"`
	Occupancy      float64           `json:"occupancy"`
	LeadDays       int               `json:"leadDays"`
	Regime         Regime            `json:"regime"`
	FlatPrices     map[int64]float64 `json:"flatPrices,omitempty"`
	CreatedAt      time.Time         `json:"createdAt,omitempty"`
}

// Flat reports whether the quote carries no distribution spread.
func (q *PriceQuote) Flat() bool {
	return q.MinPrice == nil || q.MaxPrice == nil
}

type ListingPrice struct {
	ListingID int64     `json:"listingId"`
	Date      time.Time `json:"date"`
	Price     float64   `json:"price"`
}
