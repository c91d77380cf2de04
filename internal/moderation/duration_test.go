package moderation

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		token string
		want  time.Duration
	}{
		{name: "minutes", token: "30m", want: 30 * time.Minute},
		{name: "hours", token: "1h", want: time.Hour},
		{name: "days", token: "2d", want: 48 * time.Hour},
		{name: "upper case unit", token: "5H", want: 5 * time.Hour},
		{name: "zero clamps to minimum", token: "0m", want: MinMuteDuration},
		{name: "above maximum clamps", token: "400d", want: MaxMuteDuration},
		{name: "exact maximum", token: "366d", want: MaxMuteDuration},
		{name: "huge value clamps", token: "99999999999999999999999d", want: MaxMuteDuration},
		{name: "multiplication overflow clamps", token: "9223372036854775807h", want: MaxMuteDuration},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDuration(tc.token, now)
			require.NoError(t, err)
			require.Equal(t, now.Add(tc.want), got)
		})
	}
}

func TestParseDurationRejectsMalformedTokens(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for _, token := range []string{"", "m", "10", "10s", "1w", "-5m", " 5m", "5m ", "1.5h", "h1", "5mm"} {
		_, err := ParseDuration(token, now)
		if !errors.Is(err, ErrInvalidDurationFormat) {
			t.Fatalf("token %q: expected ErrInvalidDurationFormat, got %v", token, err)
		}
	}
}
