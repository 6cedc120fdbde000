package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chanjin5212/myfarm-sub001/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

// NewRepositoryWithDB wraps an already-open connection, used by tests.
func NewRepositoryWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal order lines: %w", err)
	}
	shippingJSON, err := json.Marshal(order.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping snapshot: %w", err)
	}

	query := `INSERT INTO orders (id, order_number, user_id, status, total_amount, shipping, payment_method, lines, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.UserID,
		order.Status,
		order.TotalAmount,
		string(shippingJSON),
		order.PaymentMethod,
		string(linesJSON))

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

const orderColumns = `id, order_number, user_id, status, total_amount, shipping, payment_method, lines, created_at, updated_at`

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *Repository) GetOrderForUser(ctx context.Context, id uuid.UUID, userID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	return scanOrder(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var shippingJSON, linesJSON []byte
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&shippingJSON,
		&order.PaymentMethod,
		&linesJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &order.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshal shipping snapshot: %w", err)
	}
	if err := json.Unmarshal(linesJSON, &order.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}
	return &order, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) CreatePayment(ctx context.Context, record *domain.PaymentRecord) error {
	query := `INSERT INTO payments (id, order_id, transaction_key, method, amount, gateway_status, raw_payload, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	// jsonb wants text, not bytea
	var payload any
	if len(record.RawPayload) > 0 {
		payload = string(record.RawPayload)
	}

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.OrderID,
		record.TransactionKey,
		record.Method,
		record.Amount,
		record.GatewayStatus,
		payload)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *Repository) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.PaymentRecord, error) {
	var record domain.PaymentRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, transaction_key, method, amount, gateway_status, raw_payload, created_at
		 FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID).Scan(
		&record.ID,
		&record.OrderID,
		&record.TransactionKey,
		&record.Method,
		&record.Amount,
		&record.GatewayStatus,
		&record.RawPayload,
		&record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by order: %w", err)
	}
	return &record, nil
}

func (r *Repository) GetShipmentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Shipment, error) {
	var s domain.Shipment
	err := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, carrier_id, carrier_name, tracking_number, last_status_code, created_at, updated_at
		 FROM shipments WHERE order_id = $1 ORDER BY updated_at DESC LIMIT 1`, orderID).Scan(
		&s.ID,
		&s.OrderID,
		&s.CarrierID,
		&s.CarrierName,
		&s.TrackingNumber,
		&s.LastStatusCode,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query shipment by order: %w", err)
	}
	return &s, nil
}

func (r *Repository) GetShipmentByTracking(ctx context.Context, carrierID, trackingNumber string) (*domain.Shipment, error) {
	var s domain.Shipment
	err := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, carrier_id, carrier_name, tracking_number, last_status_code, created_at, updated_at
		 FROM shipments WHERE carrier_id = $1 AND tracking_number = $2 ORDER BY updated_at DESC LIMIT 1`,
		carrierID, trackingNumber).Scan(
		&s.ID,
		&s.OrderID,
		&s.CarrierID,
		&s.CarrierName,
		&s.TrackingNumber,
		&s.LastStatusCode,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query shipment by tracking: %w", err)
	}
	return &s, nil
}

func (r *Repository) UpsertShipment(ctx context.Context, shipment *domain.Shipment) error {
	query := `INSERT INTO shipments (id, order_id, carrier_id, carrier_name, tracking_number, last_status_code, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	          ON CONFLICT (order_id) DO UPDATE SET
	            carrier_id = $3, carrier_name = $4, tracking_number = $5, last_status_code = $6, updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		shipment.ID,
		shipment.OrderID,
		shipment.CarrierID,
		shipment.CarrierName,
		shipment.TrackingNumber,
		shipment.LastStatusCode)
	if err != nil {
		return fmt.Errorf("upsert shipment: %w", err)
	}
	return nil
}

func (r *Repository) DeleteShipment(ctx context.Context, shipmentID, orderID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM shipments WHERE id = $1 AND order_id = $2`, shipmentID, orderID)
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	if affected == 0 {
		return ErrShipmentNotFound
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, image_url, price FROM products WHERE id = $1`, productID).Scan(
		&p.ID, &p.Name, &p.ImageURL, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (r *Repository) GetVariant(ctx context.Context, variantID, productID int64) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := r.db.QueryRowContext(ctx,
		`SELECT id, product_id, name, surcharge FROM product_variants WHERE id = $1 AND product_id = $2`,
		variantID, productID).Scan(
		&v.ID, &v.ProductID, &v.Name, &v.Surcharge)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product variant: %w", err)
	}
	return &v, nil
}
