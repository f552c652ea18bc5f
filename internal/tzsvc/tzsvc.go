// Package tzsvc resolves the process-wide active timezone. A persisted
// override takes precedence over the configured default; every
// timezone-dependent operation re-reads the override, so a switch made by
// one command is visible to the next notification tick.
package tzsvc

import (
	"fmt"
	"time"

	"github.com/XSFORM/XMPLUS-info/internal/domain"
)

// Service resolves the active timezone and converts between instants and
// wall-clock due dates.
type Service struct {
	def   *time.Location
	store OverrideStore
	now   func() time.Time
}

// New validates the default timezone name and returns a Service backed by
// the given override store.
func New(defaultName string, store OverrideStore) (*Service, error) {
	return NewWithClock(defaultName, store, time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock(defaultName string, store OverrideStore, now func() time.Time) (*Service, error) {
	loc, err := time.LoadLocation(defaultName)
	if err != nil {
		return nil, fmt.Errorf("default timezone %q: %w", defaultName, err)
	}
	return &Service{def: loc, store: store, now: now}, nil
}

// Snapshot captures the active timezone once. Callers hold one snapshot per
// tick or per wizard step so a concurrent /timezone change cannot shift the
// ground under a single logical operation.
func (s *Service) Snapshot() Zone {
	if name, ok, err := s.store.Get(); err == nil && ok {
		if loc, err := time.LoadLocation(name); err == nil {
			return Zone{loc: loc, now: s.now}
		}
	}
	return Zone{loc: s.def, now: s.now}
}

// SetActive validates name against the timezone database and persists it as
// the override. On failure the override is left untouched.
func (s *Service) SetActive(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return s.store.Set(loc.String())
}

// ParseStrict parses the canonical "YYYY-MM-DD HH:MM:SS" form (plus the
// date-only shorthand) into a wall-clock timestamp. Resolution against the
// active zone happens at the moment of comparison, not here.
func (s *Service) ParseStrict(text string) (domain.WallTime, error) {
	return domain.ParseWall(text)
}

func (s *Service) ActiveName() string   { return s.Snapshot().Name() }
func (s *Service) Now() time.Time       { return s.Snapshot().Now() }
func (s *Service) OffsetString() string { return s.Snapshot().OffsetString() }

func (s *Service) Format(t time.Time) string {
	return s.Snapshot().Format(t)
}

// Zone is an immutable view of the active timezone at snapshot time.
type Zone struct {
	loc *time.Location
	now func() time.Time
}

func (z Zone) Name() string { return z.loc.String() }

// Now returns the current instant expressed in the zone.
func (z Zone) Now() time.Time { return z.now().In(z.loc) }

// Resolve pins a wall-clock due date to the zone.
func (z Zone) Resolve(w domain.WallTime) time.Time { return w.Resolve(z.loc) }

// ToActive re-expresses an absolute instant in the zone.
func (z Zone) ToActive(t time.Time) time.Time { return t.In(z.loc) }

// Format renders an instant in the canonical form, re-expressed in the zone.
func (z Zone) Format(t time.Time) string {
	return z.ToActive(t).Format(domain.TimeLayout)
}

// OffsetString returns the zone's current UTC offset as ±HH:MM. The value
// follows daylight-saving shifts.
func (z Zone) OffsetString() string {
	_, off := z.Now().Zone()
	sign := "+"
	if off < 0 {
		sign = "-"
		off = -off
	}
	return fmt.Sprintf("%s%02d:%02d", sign, off/3600, (off%3600)/60)
}
