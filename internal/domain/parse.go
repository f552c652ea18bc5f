package domain

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrBadUserID  = errors.New("user id must be a non-negative integer")
	ErrEmptyLabel = errors.New("username must not be empty")
	ErrNoIDs      = errors.New("no ids found")
)

// ParseUserID parses a non-negative integer end-user identifier.
func ParseUserID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, ErrBadUserID
	}
	return id, nil
}

// ParseLabel validates a free-text username.
func ParseLabel(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyLabel
	}
	return s, nil
}

// ParseIDList extracts every integer from free text, in any
// separator-delimited arrangement ("5, 5, 7 9" works). Duplicates are
// dropped, first-occurrence order is kept. Fails only when no integer
// is present at all.
func ParseIDList(s string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)

	var run strings.Builder
	flush := func() {
		if run.Len() == 0 {
			return
		}
		id, err := strconv.ParseInt(run.String(), 10, 64)
		run.Reset()
		if err != nil {
			return // overflow-length digit runs are ignored
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			run.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	if len(ids) == 0 {
		return nil, ErrNoIDs
	}
	return ids, nil
}
