package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Bucharest")
	if err != nil {
		panic(err)
	}
}

// force timezone to be Romanian local time because the portal
// publishes inspection dates as local calendar dates and our
// servers may run in arbitrary timezones, which would skew
// day arithmetic based on <time.Time>.Year()/Month()/Day()
func Now() time.Time {
	return time.Now().In(Location)
}
