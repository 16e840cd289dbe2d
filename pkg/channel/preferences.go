package channel

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/pg"
)

// Preference holds one user's delivery settings. The zero value accepts
// every channel type.
//
// DoNotDisturb and quiet hours hold back external channels only; in-app
// notifications are passive and always allowed unless disabled explicitly.
type Preference struct {
	Disabled     []Type    `json:"disabled"`
	DoNotDisturb bool      `json:"do_not_disturb"`
	QuietStart   string    `json:"quiet_start,omitempty"` // "HH:MM", inclusive
	QuietEnd     string    `json:"quiet_end,omitempty"`   // "HH:MM", exclusive; may wrap past midnight
	Timezone     string    `json:"timezone,omitempty"`    // IANA name of the quiet hours zone; UTC when empty
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

// Validate checks channel types, quiet hours and the time zone.
func (p Preference) Validate() error {
	for _, t := range p.Disabled {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown channel type %q", ErrInvalidPreference, t)
		}
	}
	if (p.QuietStart == "") != (p.QuietEnd == "") {
		return fmt.Errorf("%w: quiet hours need both start and end", ErrInvalidPreference)
	}
	for _, s := range []string{p.QuietStart, p.QuietEnd} {
		if s == "" {
			continue
		}
		if _, err := clockMinutes(s); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPreference, err)
		}
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("%w: unknown time zone %q", ErrInvalidPreference, p.Timezone)
	}
	return nil
}

// Allows reports whether a notification may go out over t at the given time.
func (p Preference) Allows(t Type, at time.Time) bool {
	if slices.Contains(p.Disabled, t) {
		return false
	}
	if t == TypeInApp {
		return true
	}
	return !p.DoNotDisturb && !p.quiet(at)
}

// quiet reports whether at falls inside the quiet hours window.
func (p Preference) quiet(at time.Time) bool {
	if p.QuietStart == "" || p.QuietEnd == "" {
		return false
	}
	start, err1 := clockMinutes(p.QuietStart)
	end, err2 := clockMinutes(p.QuietEnd)
	if err1 != nil || err2 != nil || start == end {
		return false
	}

	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc = time.UTC
	}
	at = at.In(loc)
	now := at.Hour()*60 + at.Minute()

	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// PreferenceStore persists preferences. Get returns the zero Preference for
// users who never saved one.
type PreferenceStore interface {
	Get(ctx context.Context, userID uuid.UUID) (Preference, error)
	Set(ctx context.Context, userID uuid.UUID, p Preference) error
}

// MemoryPreferences is an in-memory PreferenceStore.
type MemoryPreferences struct {
	mu    sync.RWMutex
	prefs map[uuid.UUID]Preference
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{prefs: make(map[uuid.UUID]Preference)}
}

func (m *MemoryPreferences) Get(_ context.Context, userID uuid.UUID) (Preference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.prefs[userID]
	p.Disabled = slices.Clone(p.Disabled)
	return p, nil
}

func (m *MemoryPreferences) Set(_ context.Context, userID uuid.UUID, p Preference) error {
	p.Disabled = slices.Clone(p.Disabled)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[userID] = p
	return nil
}

// PostgresPreferences is a PreferenceStore backed by the
// channel_preferences table.
type PostgresPreferences struct {
	db pg.DB
}

func NewPostgresPreferences(db pg.DB) *PostgresPreferences {
	return &PostgresPreferences{db: db}
}

func (s *PostgresPreferences) Get(ctx context.Context, userID uuid.UUID) (Preference, error) {
	var (
		p        Preference
		disabled []string
	)
	err := s.db.QueryRow(ctx, `
		SELECT disabled, do_not_disturb, quiet_start, quiet_end, timezone, updated_at
		FROM channel_preferences WHERE user_id = $1`, userID,
	).Scan(&disabled, &p.DoNotDisturb, &p.QuietStart, &p.QuietEnd, &p.Timezone, &p.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return Preference{}, nil
	}
	if err != nil {
		return Preference{}, fmt.Errorf("get preference: %w", err)
	}
	for _, t := range disabled {
		p.Disabled = append(p.Disabled, Type(t))
	}
	return p, nil
}

func (s *PostgresPreferences) Set(ctx context.Context, userID uuid.UUID, p Preference) error {
	disabled := make([]string, 0, len(p.Disabled))
	for _, t := range p.Disabled {
		disabled = append(disabled, t.String())
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO channel_preferences
			(user_id, disabled, do_not_disturb, quiet_start, quiet_end, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			disabled = EXCLUDED.disabled,
			do_not_disturb = EXCLUDED.do_not_disturb,
			quiet_start = EXCLUDED.quiet_start,
			quiet_end = EXCLUDED.quiet_end,
			timezone = EXCLUDED.timezone,
			updated_at = EXCLUDED.updated_at`,
		userID, disabled, p.DoNotDisturb, p.QuietStart, p.QuietEnd, p.Timezone, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}
