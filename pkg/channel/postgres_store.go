package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/courier/pkg/pg"
)

// notDeleted is the single soft-delete predicate of the Postgres store.
const notDeleted = "deleted_at IS NULL"

const channelColumns = `id, user_id, type, address, is_primary, active, verified_at,
	verification_token, created_at, updated_at, deleted_at`

// PostgresStore is a Store backed by the channels table.
type PostgresStore struct {
	db pg.DB
}

func NewPostgresStore(db pg.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c Channel) error {
	err := pg.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if c.Primary {
			if _, err := tx.Exec(ctx, `
				UPDATE channels SET is_primary = FALSE, updated_at = $3
				WHERE user_id = $1 AND type = $2 AND is_primary AND `+notDeleted,
				c.UserID, c.Type, c.UpdatedAt,
			); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO channels (`+channelColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID, c.UserID, c.Type, c.Address, c.Primary, c.Active, c.VerifiedAt,
			c.VerificationToken, c.CreatedAt, c.UpdatedAt, c.DeletedAt,
		)
		return err
	})
	if pg.IsDuplicateKeyError(err) {
		return ErrDuplicateChannel
	}
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Channel, error) {
	c, err := scanChannel(s.db.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1 AND `+notDeleted, id))
	if pg.IsNotFoundError(err) {
		return Channel{}, ErrNotFound
	}
	if err != nil {
		return Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Channel, error) {
	where := []string{"user_id = $1", notDeleted}
	args := []any{userID}
	if opts.Type != "" {
		args = append(args, opts.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if opts.VerifiedOnly || opts.EligibleOnly {
		where = append(where, "verified_at IS NOT NULL")
	}
	if opts.EligibleOnly {
		where = append(where, "active")
	}

	rows, err := s.db.Query(ctx, `SELECT `+channelColumns+` FROM channels WHERE `+
		strings.Join(where, " AND ")+` ORDER BY is_primary DESC, created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Channel, error) {
		return scanChannel(r)
	})
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, c Channel) error {
	var affected int64
	err := pg.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if c.Primary {
			if _, err := tx.Exec(ctx, `
				UPDATE channels SET is_primary = FALSE, updated_at = $2
				WHERE id <> $1 AND is_primary AND `+notDeleted+`
				AND (user_id, type) = (SELECT user_id, type FROM channels WHERE id = $1)`,
				c.ID, c.UpdatedAt,
			); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `
			UPDATE channels
			SET active = $2, is_primary = $3, verified_at = $4, verification_token = $5, updated_at = $6
			WHERE id = $1 AND `+notDeleted,
			c.ID, c.Active, c.Primary, c.VerifiedAt, c.VerificationToken, c.UpdatedAt,
		)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE channels SET deleted_at = now(), updated_at = now(), is_primary = FALSE
		WHERE id = $1 AND `+notDeleted, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanChannel(row pgx.Row) (Channel, error) {
	var c Channel
	err := row.Scan(
		&c.ID, &c.UserID, &c.Type, &c.Address, &c.Primary, &c.Active, &c.VerifiedAt,
		&c.VerificationToken, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	return c, err
}
