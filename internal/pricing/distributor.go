package pricing

import (
	"math"
	"time"

	"github.com/kjannette/smartprice/internal/models"
)

// OrderByPriority returns the members of available in priority order,
// dropping ids that are not in priority and repeats.
func OrderByPriority(priority, available []int64) []int64 {
	avail := make(map[int64]struct{}, len(available))
	for _, id := range available {
		avail[id] = struct{}{}
	}
	out := make([]int64, 0, len(available))
	for _, id := range priority {
		if _, ok := avail[id]; ok {
			out = append(out, id)
			delete(avail, id)
		}
	}
	return out
}

// Spread assigns a price to each listing in order. With a nil max every
// listing gets base; otherwise prices climb from base toward max in equal
// steps, rounded to one decimal, never decreasing and never above max.
// The first listing always gets base unchanged.
func Spread(date time.Time, base float64, max *float64, ordered []int64) []models.ListingPrice {
	out := make([]models.ListingPrice, 0, len(ordered))
	if len(ordered) == 0 {
		return out
	}
	date = models.Day(date)

	if max == nil {
		for _, id := range ordered {
			out = append(out, models.ListingPrice{ListingID: id, Date: date, Price: base})
		}
		return out
	}

	step := 0.0
	if *max > base {
		step = (*max - base) / float64(len(ordered))
	}

	prev := base
	for i, id := range ordered {
		price := base
		if i > 0 {
			price = math.Min(round(base+float64(i)*step, 1), *max)
			if price < prev {
				price = prev
			}
		}
		out = append(out, models.ListingPrice{ListingID: id, Date: date, Price: price})
		prev = price
	}
	return out
}

// Distribute spreads a quote across the ordered listings. Flat quotes give
// every listing the base price unless the listing has its own flat price.
func Distribute(q *models.PriceQuote, ordered []int64) []models.ListingPrice {
	if q.Flat() {
		out := Spread(q.Date, q.BasePrice, nil, ordered)
		for i := range out {
			if p, ok := q.FlatPrices[out[i].ListingID]; ok {
				out[i].Price = p
			}
		}
		return out
	}
	return Spread(q.Date, q.BasePrice, q.MaxPrice, ordered)
}
