package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/courier/pkg/pg"
)

const deliveryColumns = `id, notification_id, channel_id, channel_type, recipient, state,
	attempt_count, max_retries, last_attempt_at, next_retry_at, provider, provider_message_id,
	error_code, error_message, metadata, delivered_at, created_at, updated_at`

// PostgresStore is a Store backed by the deliveries table. The schema holds
// a unique (notification_id, channel_id) constraint and an ON DELETE CASCADE
// foreign key to notifications.
type PostgresStore struct {
	db pg.DB
}

func NewPostgresStore(db pg.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateBatch(ctx context.Context, ds []Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	err := pg.InTx(ctx, s.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, d := range ds {
			batch.Queue(`INSERT INTO deliveries (`+deliveryColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
				d.ID, d.NotificationID, d.ChannelID, d.ChannelType, d.Recipient, d.State,
				d.AttemptCount, d.MaxRetries, d.LastAttemptAt, d.NextRetryAt, d.Provider, d.ProviderMessageID,
				d.ErrorCode, d.ErrorMessage, d.Metadata, d.DeliveredAt, d.CreatedAt, d.UpdatedAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	switch {
	case err == nil:
		return nil
	case pg.IsDuplicateKeyError(err):
		return ErrDuplicateDelivery
	case pg.IsForeignKeyViolationError(err):
		return ErrUnknownNotification
	default:
		return fmt.Errorf("insert deliveries: %w", err)
	}
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return Delivery{}, ErrDeliveryNotFound
	}
	if err != nil {
		return Delivery{}, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) Update(ctx context.Context, next Delivery, expected Version) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE deliveries SET
			state = $4, attempt_count = $5, last_attempt_at = $6, next_retry_at = $7,
			provider = $8, provider_message_id = $9, error_code = $10, error_message = $11,
			metadata = $12, delivered_at = $13, updated_at = $14
		WHERE id = $1 AND state = $2 AND attempt_count = $3`,
		next.ID, expected.State, expected.AttemptCount,
		next.State, next.AttemptCount, next.LastAttemptAt, next.NextRetryAt,
		next.Provider, next.ProviderMessageID, next.ErrorCode, next.ErrorMessage,
		next.Metadata, next.DeliveredAt, next.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1)`, next.ID).Scan(&exists); err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if !exists {
		return ErrDeliveryNotFound
	}
	return ErrConflict
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time, limit int) ([]Delivery, error) {
	return s.list(ctx, `
		SELECT `+deliveryColumns+` FROM deliveries
		WHERE state = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at, id
		LIMIT $2`, now, limit)
}

func (s *PostgresStore) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Delivery, error) {
	return s.list(ctx, `
		SELECT `+deliveryColumns+` FROM deliveries
		WHERE notification_id = $1
		ORDER BY created_at, id`, notificationID)
}

func (s *PostgresStore) CountByState(ctx context.Context, notificationID uuid.UUID) (map[State]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT state, count(*) FROM deliveries WHERE notification_id = $1 GROUP BY state`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[State]int)
	for rows.Next() {
		var (
			state State
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("count deliveries: %w", err)
		}
		counts[state] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) list(ctx context.Context, sql string, args ...any) ([]Delivery, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Delivery, error) {
		return scanDelivery(r)
	})
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return out, nil
}

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(
		&d.ID, &d.NotificationID, &d.ChannelID, &d.ChannelType, &d.Recipient, &d.State,
		&d.AttemptCount, &d.MaxRetries, &d.LastAttemptAt, &d.NextRetryAt, &d.Provider, &d.ProviderMessageID,
		&d.ErrorCode, &d.ErrorMessage, &d.Metadata, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}
