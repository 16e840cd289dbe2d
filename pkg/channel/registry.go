package channel

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/logger"
)

// Registry manages user channels and answers which of them may receive a
// notification.
type Registry struct {
	store  Store
	prefs  PreferenceStore
	logger *slog.Logger
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPreferences sets where user preferences are kept. Default is an
// in-memory store.
func WithPreferences(p PreferenceStore) RegistryOption {
	return func(r *Registry) {
		if p != nil {
			r.prefs = p
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:  store,
		prefs:  NewMemoryPreferences(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EligibleChannels returns the user's active, verified, non-deleted channels
// that the user's preferences currently allow. A user without channels gets
// an empty slice and no error.
func (r *Registry) EligibleChannels(ctx context.Context, userID uuid.UUID) ([]Channel, error) {
	all, err := r.store.ListByUser(ctx, userID, ListOptions{EligibleOnly: true})
	if err != nil {
		return nil, err
	}

	pref, err := r.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	out := make([]Channel, 0, len(all))
	for _, c := range all {
		if !c.Eligible() {
			continue
		}
		if !pref.Allows(c.Type, now) {
			r.logger.LogAttrs(ctx, slog.LevelDebug, "channel suppressed by preferences",
				logger.UserID(userID),
				logger.ChannelID(c.ID),
				logger.ChannelType(c.Type.String()),
			)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// AddParams describes a new channel.
type AddParams struct {
	UserID  uuid.UUID
	Type    Type
	Address string
	Primary bool
}

// Add registers a new active, unverified channel with a fresh verification
// token. Making it primary demotes the user's other primary channel of the
// same type.
func (r *Registry) Add(ctx context.Context, p AddParams) (Channel, error) {
	if !p.Type.Valid() {
		return Channel{}, ErrUnknownType
	}
	address := strings.TrimSpace(p.Address)
	if err := ValidateAddress(p.Type, address); err != nil {
		return Channel{}, err
	}

	token, err := newVerificationToken()
	if err != nil {
		return Channel{}, err
	}

	now := r.now()
	c := Channel{
		ID:                uuid.New(),
		UserID:            p.UserID,
		Type:              p.Type,
		Address:           address,
		Primary:           p.Primary,
		Active:            true,
		VerificationToken: token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.store.Create(ctx, c); err != nil {
		return Channel{}, err
	}

	r.logger.LogAttrs(ctx, slog.LevelInfo, "channel added",
		logger.UserID(c.UserID),
		logger.ChannelID(c.ID),
		logger.ChannelType(c.Type.String()),
	)
	return c, nil
}

// Verify marks the channel verified when token matches its verification
// token. The token is single use.
func (r *Registry) Verify(ctx context.Context, id uuid.UUID, token string) (Channel, error) {
	c, err := r.get(ctx, id)
	if err != nil {
		return Channel{}, err
	}
	if c.Verified() {
		return c, ErrAlreadyVerified
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(c.VerificationToken)) != 1 {
		return Channel{}, ErrInvalidToken
	}

	now := r.now()
	c.VerifiedAt = &now
	c.VerificationToken = ""
	c.UpdatedAt = now
	if err := r.store.Update(ctx, c); err != nil {
		return Channel{}, err
	}
	return c, nil
}

// Deactivate stops fan-out to the channel without deleting it.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) (Channel, error) {
	c, err := r.get(ctx, id)
	if err != nil {
		return Channel{}, err
	}
	if !c.Active {
		return c, nil
	}
	c.Active = false
	c.UpdatedAt = r.now()
	if err := r.store.Update(ctx, c); err != nil {
		return Channel{}, err
	}
	return c, nil
}

// Delete soft-deletes the channel. Existing deliveries keep their copy of
// the address.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "channel not found", logger.ChannelID(id))
		}
		return err
	}
	return nil
}

// Get returns a visible channel.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (Channel, error) {
	return r.get(ctx, id)
}

// ListByUser returns the user's channels, primary first.
func (r *Registry) ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Channel, error) {
	return r.store.ListByUser(ctx, userID, opts)
}

func (r *Registry) get(ctx context.Context, id uuid.UUID) (Channel, error) {
	c, err := r.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "channel not found", logger.ChannelID(id))
	}
	return c, err
}

func newVerificationToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Preference returns the user's delivery settings, the zero value when none
// were saved.
func (r *Registry) Preference(ctx context.Context, userID uuid.UUID) (Preference, error) {
	p, err := r.prefs.Get(ctx, userID)
	if err != nil {
		return Preference{}, err
	}
	if p.Disabled == nil {
		p.Disabled = []Type{}
	}
	return p, nil
}

// SetPreference validates and replaces the user's delivery settings.
func (r *Registry) SetPreference(ctx context.Context, userID uuid.UUID, p Preference) (Preference, error) {
	if err := p.Validate(); err != nil {
		return Preference{}, err
	}
	p.Disabled = slices.Clone(p.Disabled)
	if p.Disabled == nil {
		p.Disabled = []Type{}
	}
	slices.Sort(p.Disabled)
	p.Disabled = slices.Compact(p.Disabled)
	p.UpdatedAt = r.now()

	if err := r.prefs.Set(ctx, userID, p); err != nil {
		return Preference{}, err
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "preference updated",
		logger.UserID(userID),
		slog.Bool("do_not_disturb", p.DoNotDisturb),
		slog.Int("disabled", len(p.Disabled)),
	)
	return p, nil
}
