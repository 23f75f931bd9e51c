package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Calculator turns a closed attendance interval into hour bands and pay.
type Calculator interface {
	Compute(checkIn, checkOut time.Time, hourlyRate decimal.Decimal) (Breakdown, error)
	Rules() Rules
}
