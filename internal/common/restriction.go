package common

import (
	"time"

	"golang.org/x/time/rate"
)

// A restriction means that only the specified number of requests
// are allowed for a specific time duration.
// A restriction with zero requests does not restrict anything
type Restriction struct {
	Requests int
	Duration time.Duration
}

func (rest Restriction) Enabled() bool {
	return rest.Requests > 0 && rest.Duration > 0
}

// Limit is the steady refill rate that lets Requests through every Duration
func (rest Restriction) Limit() rate.Limit {
	if !rest.Enabled() {
		return rate.Inf
	}
	return rate.Every(rest.Duration / time.Duration(rest.Requests))
}
