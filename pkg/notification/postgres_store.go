package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/courier/pkg/pg"
)

// notDeleted is the single soft-delete predicate of the Postgres store.
const notDeleted = "deleted_at IS NULL"

const notificationColumns = `id, user_id, title, body, priority, source, payload, read, read_at,
	dismissed, dismissed_at, expires_at, created_at, updated_at, deleted_at`

// PostgresStore is a Store backed by the notifications table.
// Purge relies on the ON DELETE CASCADE foreign key of deliveries.
type PostgresStore struct {
	db pg.DB
}

func NewPostgresStore(db pg.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, n Notification) error {
	n.Normalize(time.Now())
	if err := n.Validate(); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		n.ID, n.UserID, n.Title, n.Body, n.Priority, n.Source, n.Payload, n.Read, n.ReadAt,
		n.Dismissed, n.DismissedAt, n.ExpiresAt, n.CreatedAt, n.UpdatedAt, n.DeletedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Notification, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND `+notDeleted, id)
	n, err := scanNotification(row)
	if pg.IsNotFoundError(err) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	var (
		where = []string{"user_id = $1", notDeleted, "(expires_at IS NULL OR expires_at > now())"}
		args  = []any{userID}
	)
	if opts.OnlyUnread {
		where = append(where, "NOT read")
	}
	if !opts.IncludeDismissed {
		where = append(where, "NOT dismissed")
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Notification, error) {
		return scanNotification(r)
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = now(), updated_at = now()
		WHERE user_id = $1 AND id = ANY($2) AND NOT read AND `+notDeleted,
		userID, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Dismiss(ctx context.Context, userID, id uuid.UUID) error {
	return s.touch(ctx, `
		UPDATE notifications
		SET dismissed = TRUE, dismissed_at = COALESCE(dismissed_at, now()), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND `+notDeleted, id, userID)
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.touch(ctx, `
		UPDATE notifications SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND `+notDeleted, id, userID)
}

func (s *PostgresStore) Purge(ctx context.Context, id uuid.UUID) error {
	return s.touch(ctx, `DELETE FROM notifications WHERE id = $1`, id)
}

func (s *PostgresStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE user_id = $1 AND NOT read AND NOT dismissed AND `+notDeleted+`
		AND (expires_at IS NULL OR expires_at > now())`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// touch runs a single-row statement and maps "no row" to ErrNotFound.
func (s *PostgresStore) touch(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Body, &n.Priority, &n.Source, &n.Payload, &n.Read, &n.ReadAt,
		&n.Dismissed, &n.DismissedAt, &n.ExpiresAt, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt,
	)
	return n, err
}
