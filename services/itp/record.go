package itp

import (
	"math"
	"time"

	"raritp-backend/lib/scrapers/rarom"
	"raritp-backend/lib/timezone"
)

// Record is the last known inspection state of one monitored vehicle.
// A new record replaces the previous one for the same VIN.
type Record struct {
	VIN            string    `json:"vin"`
	Status         string    `json:"status"`
	ExpirationDate string    `json:"expiration_date"`
	LastChecked    time.Time `json:"last_checked"`
}

// DaysUntil reports the number of whole days from now until the
// expiration date. The second return is false when the date is
// unknown or malformed.
func DaysUntil(expirationDate string, now time.Time) (int, bool) {
	if expirationDate == "" || expirationDate == rarom.DateUnknown {
		return 0, false
	}
	exp, err := time.ParseInLocation("2006-01-02", expirationDate, timezone.Location)
	if err != nil {
		return 0, false
	}

	now = now.In(timezone.Location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, timezone.Location)
	// rounding absorbs the odd hour a DST transition adds or removes
	return int(math.Round(exp.Sub(midnight).Hours() / 24)), true
}
