package github

import (
	"fmt"
	"time"
)

func parseSince(since string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, since)
	if err != nil {
		return time.Time{}, fmt.Errorf("github: since must be RFC3339, got %q: %w", since, err)
	}
	return t, nil
}
