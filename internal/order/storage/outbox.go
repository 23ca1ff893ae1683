package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LewiysArito/simple-ddd-order-flow/pkg/outbox"
)

// PgOutboxStore keeps undelivered events in the same database as the
// aggregates. When Insert runs under TxManager.WithinTx it joins the
// aggregate write's transaction.
type PgOutboxStore struct {
	pool *pgxpool.Pool
}

func NewPgOutboxStore(pool *pgxpool.Pool) *PgOutboxStore {
	return &PgOutboxStore{pool: pool}
}

func (s *PgOutboxStore) Insert(ctx context.Context, eventID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = querierFrom(ctx, s.pool).Exec(ctx,
		`INSERT INTO outbox(event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		eventID, topic, key, data)
	return err
}

func (s *PgOutboxStore) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	rows, err := querierFrom(ctx, s.pool).Query(ctx,
		`SELECT id, event_id, topic, key, payload, attempts, created_at, sent_at
		 FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []outbox.Record
	for rows.Next() {
		var rec outbox.Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.Attempts, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PgOutboxStore) MarkSent(ctx context.Context, id int64) error {
	_, err := querierFrom(ctx, s.pool).Exec(ctx,
		`UPDATE outbox SET sent_at=$2 WHERE id=$1`, id, time.Now().UTC())
	return err
}

func (s *PgOutboxStore) MarkFailed(ctx context.Context, id int64) error {
	_, err := querierFrom(ctx, s.pool).Exec(ctx,
		`UPDATE outbox SET attempts=attempts+1 WHERE id=$1`, id)
	return err
}

func (s *PgOutboxStore) Pending(ctx context.Context) (int, error) {
	var n int
	err := querierFrom(ctx, s.pool).QueryRow(ctx,
		`SELECT count(*) FROM outbox WHERE sent_at IS NULL`).Scan(&n)
	return n, err
}
