package pricing

import "github.com/shopspring/decimal"

// round rounds half away from zero at the given number of decimal places.
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
