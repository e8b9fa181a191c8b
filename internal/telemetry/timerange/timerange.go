// Package timerange maps the dashboard's relative range tokens to time windows.
package timerange

import (
	"time"

	"mqtt-monitor/backend/internal/telemetry/domain"
)

// Default is the token used for missing or unknown ranges.
const Default = "5m"

var durations = map[string]time.Duration{
	"5m":  5 * time.Minute,
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Tokens lists the accepted range tokens, shortest first.
var Tokens = []string{"5m", "1h", "24h", "7d", "30d"}

// Normalize returns token when it is accepted, otherwise Default.
func Normalize(token string) string {
	if _, ok := durations[token]; ok {
		return token
	}
	return Default
}

// Resolve returns the start of the range token relative to now. Unknown tokens resolve as Default.
func Resolve(token string, now time.Time) time.Time {
	return now.Add(-durations[Normalize(token)])
}

// Window returns the open-ended window for token: from Resolve(token, now) with no upper bound.
func Window(token string, now time.Time) domain.TimeWindow {
	return domain.TimeWindow{Start: Resolve(token, now)}
}
