package store

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// durationPattern matches duration strings like "12h", "7d", "2w", "3m", "1y"
var durationPattern = regexp.MustCompile(`^(\d+)([hdwmy])$`)

// ParseDuration parses a duration string like "12h", "7d", "2w", "3m", "1y".
//
// Supported units:
//   - h: hours
//   - d: days
//   - w: weeks (7 days)
//   - m: months (30 days, approximation)
//   - y: years (365 days, approximation)
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration string is empty")
	}

	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid duration format: %s (expected format: <number><unit>, e.g., 12h, 7d, 2w, 3m, 1y)", s)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid number in duration: %s", matches[1])
	}

	const day = 24 * time.Hour

	var duration time.Duration
	switch matches[2] {
	case "h":
		duration = time.Duration(num) * time.Hour
	case "d":
		duration = time.Duration(num) * day
	case "w":
		duration = time.Duration(num) * 7 * day
	case "m":
		duration = time.Duration(num) * 30 * day
	case "y":
		duration = time.Duration(num) * 365 * day
	}

	return duration, nil
}

// SinceToUnixTime converts a "since" duration string (e.g., "7d") to the Unix
// timestamp that lies that far before now.
func SinceToUnixTime(since string, now time.Time) (int64, error) {
	duration, err := ParseDuration(since)
	if err != nil {
		return 0, err
	}

	return now.Add(-duration).Unix(), nil
}

// BuildQueryOptions constructs QueryOptions from CLI flags.
func BuildQueryOptions(limit, offset int, since, topic string) (QueryOptions, error) {
	if limit < 0 || offset < 0 {
		return QueryOptions{}, fmt.Errorf("limit and offset must not be negative")
	}

	opts := QueryOptions{
		Limit:  limit,
		Offset: offset,
		Topic:  topic,
	}

	if since != "" {
		sinceUnix, err := SinceToUnixTime(since, time.Now())
		if err != nil {
			return opts, fmt.Errorf("failed to parse --since flag: %w", err)
		}
		opts.SinceTime = &sinceUnix
	}

	return opts, nil
}
