package api

import "time"

func timeNow() time.Time {
	return time.Now().UTC()
}

func parseDate(v string) (time.Time, error) {
	return time.Parse("2006-01-02", v)
}
