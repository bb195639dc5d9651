package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/transcribe-checkout/internal/readmodel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// PostgresReadStore implements OrderReadStore on the read_orders table
type PostgresReadStore struct {
	db *sql.DB
}

func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

const orderColumns = `id, user_id, is_guest, guest_email, customer, plan_id, plan_name, file_name,
	duration_minutes, add_ons, promo_code, discount, subtotal, discount_amount, total, currency,
	status, payment_ref, failure_reason, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*readmodel.OrderReadModel, error) {
	var o readmodel.OrderReadModel
	var userID, guestEmail, promoCode, paymentRef, failureReason sql.NullString
	var customerJSON, addOnsJSON []byte

	err := row.Scan(&o.ID, &userID, &o.IsGuest, &guestEmail, &customerJSON, &o.PlanID, &o.PlanName, &o.FileName,
		&o.DurationMinutes, &addOnsJSON, &promoCode, &o.Discount, &o.Subtotal, &o.DiscountAmount, &o.Total, &o.Currency,
		&o.Status, &paymentRef, &failureReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(customerJSON, &o.Customer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer: %w", err)
	}
	if err := json.Unmarshal(addOnsJSON, &o.AddOns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal add-ons: %w", err)
	}
	o.UserID = userID.String
	o.GuestEmail = guestEmail.String
	o.PromoCode = promoCode.String
	o.PaymentRef = paymentRef.String
	o.FailureReason = failureReason.String
	return &o, nil
}

func (rs *PostgresReadStore) SaveOrder(ctx context.Context, o *readmodel.OrderReadModel) error {
	return saveOrder(ctx, rs.db, o)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveOrder(ctx context.Context, db execer, o *readmodel.OrderReadModel) error {
	customerJSON, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("failed to marshal customer: %w", err)
	}
	addOns := o.AddOns
	if addOns == nil {
		addOns = []string{}
	}
	addOnsJSON, err := json.Marshal(addOns)
	if err != nil {
		return fmt.Errorf("failed to marshal add-ons: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO read_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			payment_ref = EXCLUDED.payment_ref,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at
	`, o.ID, nullString(o.UserID), o.IsGuest, nullString(o.GuestEmail), customerJSON, o.PlanID, o.PlanName, o.FileName,
		o.DurationMinutes, addOnsJSON, nullString(o.PromoCode), o.Discount, o.Subtotal, o.DiscountAmount, o.Total, o.Currency,
		o.Status, nullString(o.PaymentRef), nullString(o.FailureReason), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", o.ID, err)
	}
	return nil
}

func (rs *PostgresReadStore) GetOrder(ctx context.Context, id string) (*readmodel.OrderReadModel, error) {
	o, err := scanOrder(rs.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM read_orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return o, nil
}

func (rs *PostgresReadStore) ListOrdersByUser(ctx context.Context, userID string) ([]*readmodel.OrderReadModel, error) {
	return rs.queryOrders(ctx, `SELECT `+orderColumns+` FROM read_orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (rs *PostgresReadStore) ListOrders(ctx context.Context) ([]*readmodel.OrderReadModel, error) {
	return rs.queryOrders(ctx, `SELECT `+orderColumns+` FROM read_orders ORDER BY created_at DESC`)
}

func (rs *PostgresReadStore) queryOrders(ctx context.Context, query string, args ...any) ([]*readmodel.OrderReadModel, error) {
	rows, err := rs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*readmodel.OrderReadModel, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOrder locks the row, applies updateFn and writes the result back.
func (rs *PostgresReadStore) UpdateOrder(ctx context.Context, id string, updateFn func(o *readmodel.OrderReadModel)) error {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM read_orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", id, err)
	}

	updateFn(o)
	if err := saveOrder(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

// RunMigrations applies the SQL files in dir to db.
func RunMigrations(db *sql.DB, dir string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
