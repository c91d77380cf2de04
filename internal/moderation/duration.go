package moderation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	MinMuteDuration = 30 * time.Second
	MaxMuteDuration = 366 * 24 * time.Hour
)

var durationPattern = regexp.MustCompile(`^(\d+)([mhd])$`)

var durationUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseDuration turns a token such as "30m", "1h" or "2D" into an absolute expiry relative to now.
// The duration is clamped to [MinMuteDuration, MaxMuteDuration].
func ParseDuration(token string, now time.Time) (time.Time, error) {
	match := durationPattern.FindStringSubmatch(strings.ToLower(token))
	if match == nil {
		return time.Time{}, errors.Wrapf(ErrInvalidDurationFormat, "token %q", token)
	}
	unit := durationUnits[match[2]]

	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		// digits only, so the sole failure is overflow
		return now.Add(MaxMuteDuration), nil
	}
	return now.Add(clampDuration(value, unit)), nil
}

func clampDuration(value int64, unit time.Duration) time.Duration {
	if value > math.MaxInt64/int64(unit) {
		return MaxMuteDuration
	}
	d := time.Duration(value) * unit
	switch {
	case d < MinMuteDuration:
		return MinMuteDuration
	case d > MaxMuteDuration:
		return MaxMuteDuration
	}
	return d
}
