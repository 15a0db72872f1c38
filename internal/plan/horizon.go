package plan

import (
	"errors"
	"strings"
)

// Horizon partitions a user's plans around the current time.
type Horizon string

const (
	HorizonNew Horizon = "new"
	HorizonOld Horizon = "old"
)

var ErrInvalidHorizon = errors.New("invalid horizon")

// ParseHorizon accepts "new" or "old"; empty means new.
func ParseHorizon(s string) (Horizon, error) {
	switch Horizon(strings.ToLower(strings.TrimSpace(s))) {
	case "", HorizonNew:
		return HorizonNew, nil
	case HorizonOld:
		return HorizonOld, nil
	}
	return "", ErrInvalidHorizon
}
