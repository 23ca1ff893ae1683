package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/domain"
)

// PgRepository persists orders in a single table with the items as jsonb.
// The version column implements optimistic concurrency: Update only touches
// the row if it still holds the version the caller read.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

type itemRow struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
}

const orderColumns = `id, user_id, status, items, version, created_at`

func (r *PgRepository) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	row := querierFrom(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return order, err
}

func (r *PgRepository) GetByUser(ctx context.Context, userID domain.UserID) ([]*domain.Order, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (r *PgRepository) Add(ctx context.Context, order *domain.Order) error {
	items, err := marshalItems(order.Items())
	if err != nil {
		return err
	}
	_, err = querierFrom(ctx, r.pool).Exec(ctx,
		`INSERT INTO orders(id, user_id, status, items, version, created_at)
		 VALUES($1, $2, $3, $4, $5, $6)`,
		order.ID(), order.UserID(), string(order.Status()), items, order.Version(), order.CreatedAt())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, order.ID())
	}
	return err
}

func (r *PgRepository) Update(ctx context.Context, order *domain.Order) error {
	items, err := marshalItems(order.Items())
	if err != nil {
		return err
	}
	// Every mutation bumps the version by one, so the row must still hold
	// the version the caller read before mutating.
	tag, err := querierFrom(ctx, r.pool).Exec(ctx,
		`UPDATE orders SET status=$2, items=$3, version=$4 WHERE id=$1 AND version=$5`,
		order.ID(), string(order.Status()), items, order.Version(), order.Version()-1)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.Exists(ctx, order.ID())
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, order.ID())
		}
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, order.ID())
	}
	return nil
}

func (r *PgRepository) Exists(ctx context.Context, id domain.OrderID) (bool, error) {
	var exists bool
	err := querierFrom(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func marshalItems(items []domain.OrderItem) ([]byte, error) {
	rows := make([]itemRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, itemRow{
			ProductID:   it.ProductID().String(),
			ProductName: it.ProductName(),
			Price:       it.UnitPrice().Amount().String(),
			Currency:    it.UnitPrice().Currency(),
			Quantity:    it.Quantity(),
		})
	}
	return json.Marshal(rows)
}

func unmarshalItems(data []byte) ([]domain.OrderItem, error) {
	var rows []itemRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	items := make([]domain.OrderItem, 0, len(rows))
	for _, row := range rows {
		productID, err := uuid.Parse(row.ProductID)
		if err != nil {
			return nil, fmt.Errorf("stored item has bad product id: %w", err)
		}
		amount, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, fmt.Errorf("stored item has bad price: %w", err)
		}
		price, err := domain.NewMoney(amount, row.Currency)
		if err != nil {
			return nil, err
		}
		item, err := domain.NewOrderItem(productID, row.ProductName, price, row.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		id        uuid.UUID
		userID    uuid.UUID
		status    string
		itemsJSON []byte
		version   int
		createdAt time.Time
	)
	if err := row.Scan(&id, &userID, &status, &itemsJSON, &version, &createdAt); err != nil {
		return nil, err
	}
	items, err := unmarshalItems(itemsJSON)
	if err != nil {
		return nil, err
	}
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return domain.Rehydrate(id, userID, items, parsed, version, createdAt)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
