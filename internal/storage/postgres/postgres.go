// Package postgres implements ports.Store on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ssfarm/internal/core"
	"ssfarm/internal/ports"
)

var _ ports.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, applies migrations and returns a ready Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "Postgres store ready")
	return &Store{pool: pool}, nil
}

// New wraps an existing pool; migrations are the caller's concern.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ports.ErrConflict
		case "23503":
			return ports.ErrNotFound
		}
	}
	return err
}

func requireOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Customers

const customerCols = `id, name, address, phone, milk_price, default_qty, status, previous_balance, balance_as_of, created_at`

func (s *Store) CreateCustomer(ctx context.Context, c core.Customer) error {
	prev, asOf := snapshotArgs(c)
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	const q = `INSERT INTO customers (` + customerCols + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := s.pool.Exec(ctx, q, c.ID, c.Name, c.Address, c.Phone, c.MilkPrice, c.DefaultQty,
		string(c.Status), prev, asOf, created); err != nil {
		return fmt.Errorf("insert customer: %w", mapErr(err))
	}
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c core.Customer) error {
	prev, asOf := snapshotArgs(c)
	const q = `
UPDATE customers
SET name = $2, address = $3, phone = $4, milk_price = $5, default_qty = $6, status = $7,
    previous_balance = $8, balance_as_of = $9
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, c.ID, c.Name, c.Address, c.Phone, c.MilkPrice, c.DefaultQty,
		string(c.Status), prev, asOf)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", c.ID, err)
	}
	return requireOne(tag)
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}
	return requireOne(tag)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (core.Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, `SELECT `+customerCols+` FROM customers WHERE id = $1`, id))
	if err != nil {
		return core.Customer{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+customerCols+` FROM customers ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	var out []core.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCustomer(row pgx.Row) (core.Customer, error) {
	var (
		c      core.Customer
		status string
		prev   *float64
		asOf   *time.Time
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.MilkPrice, &c.DefaultQty,
		&status, &prev, &asOf, &c.CreatedAt); err != nil {
		return core.Customer{}, err
	}
	c.Status = core.CustomerStatus(status)
	if prev != nil && asOf != nil {
		d := core.DateOf(*asOf)
		c.PreviousBalance = prev
		c.BalanceAsOf = &d
	}
	return c, nil
}

func snapshotArgs(c core.Customer) (*float64, *time.Time) {
	if c.PreviousBalance == nil || c.BalanceAsOf == nil {
		return nil, nil
	}
	t := c.BalanceAsOf.Time
	return c.PreviousBalance, &t
}

// Deliveries

func (s *Store) UpsertDelivery(ctx context.Context, d core.Delivery) error {
	const q = `
INSERT INTO deliveries (id, customer_id, date, quantity, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (customer_id, date) DO UPDATE
SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`
	if _, err := s.pool.Exec(ctx, q, d.ID, d.CustomerID, d.Date.Time, d.Quantity); err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ports.ErrNotFound) {
			return mapped
		}
		return fmt.Errorf("upsert delivery %s/%s: %w", d.CustomerID, d.Date, err)
	}
	return nil
}

func (s *Store) DeleteDelivery(ctx context.Context, customerID string, date core.Date) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM deliveries WHERE customer_id = $1 AND date = $2`, customerID, date.Time); err != nil {
		return fmt.Errorf("delete delivery %s/%s: %w", customerID, date, err)
	}
	return nil
}

func (s *Store) ListDeliveries(ctx context.Context, customerID string, upTo core.Date) ([]core.Delivery, error) {
	const q = `SELECT id, customer_id, date, quantity FROM deliveries WHERE customer_id = $1 AND date <= $2 ORDER BY date`
	return s.queryDeliveries(ctx, q, customerID, upTo.Time)
}

func (s *Store) ListDeliveriesBetween(ctx context.Context, from, to core.Date) ([]core.Delivery, error) {
	const q = `SELECT id, customer_id, date, quantity FROM deliveries WHERE date BETWEEN $1 AND $2 ORDER BY date, customer_id`
	return s.queryDeliveries(ctx, q, from.Time, to.Time)
}

func (s *Store) queryDeliveries(ctx context.Context, q string, args ...any) ([]core.Delivery, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()
	var out []core.Delivery
	for rows.Next() {
		var (
			d    core.Delivery
			date time.Time
		)
		if err := rows.Scan(&d.ID, &d.CustomerID, &date, &d.Quantity); err != nil {
			return nil, err
		}
		d.Date = core.DateOf(date)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Payments

func (s *Store) CreatePayment(ctx context.Context, p core.Payment) error {
	const q = `INSERT INTO payments (id, customer_id, date, amount, note) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, p.ID, p.CustomerID, p.Date.Time, p.Amount, p.Note); err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ports.ErrNotFound) {
			return mapped
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, id string) (core.Payment, error) {
	const q = `DELETE FROM payments WHERE id = $1 RETURNING id, customer_id, date, amount, note`
	p, err := scanPayment(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return core.Payment{}, mapErr(err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, customerID string, upTo core.Date) ([]core.Payment, error) {
	const q = `SELECT id, customer_id, date, amount, note FROM payments WHERE customer_id = $1 AND date <= $2 ORDER BY date, id`
	return s.queryPayments(ctx, q, customerID, upTo.Time)
}

func (s *Store) ListPaymentsBetween(ctx context.Context, from, to core.Date) ([]core.Payment, error) {
	const q = `SELECT id, customer_id, date, amount, note FROM payments WHERE date BETWEEN $1 AND $2 ORDER BY date, id`
	return s.queryPayments(ctx, q, from.Time, to.Time)
}

func (s *Store) queryPayments(ctx context.Context, q string, args ...any) ([]core.Payment, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var out []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (core.Payment, error) {
	var (
		p    core.Payment
		date time.Time
	)
	if err := row.Scan(&p.ID, &p.CustomerID, &date, &p.Amount, &p.Note); err != nil {
		return core.Payment{}, err
	}
	p.Date = core.DateOf(date)
	return p, nil
}

// Orders

const orderCols = `id, customer_id, date, quantity, status, created_at`

func (s *Store) CreateOrder(ctx context.Context, o core.Order) error {
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	const q = `INSERT INTO orders (` + orderCols + `) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, q, o.ID, o.CustomerID, o.Date.Time, o.Quantity, string(o.Status), created); err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ports.ErrNotFound) {
			return mapped
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (core.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return core.Order{}, mapErr(err)
	}
	return o, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, id string, status core.OrderStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	return requireOne(tag)
}

func (s *Store) ListOrders(ctx context.Context, status core.OrderStatus) ([]core.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE $1 = '' OR status = $1 ORDER BY date, created_at`
	rows, err := s.pool.Query(ctx, q, string(status))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var out []core.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) HasOrder(ctx context.Context, customerID string, date core.Date) (bool, error) {
	var exists bool
	const q = `SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1 AND date = $2 AND status <> 'rejected')`
	if err := s.pool.QueryRow(ctx, q, customerID, date.Time).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order: %w", err)
	}
	return exists, nil
}

func scanOrder(row pgx.Row) (core.Order, error) {
	var (
		o      core.Order
		date   time.Time
		status string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &date, &o.Quantity, &status, &o.CreatedAt); err != nil {
		return core.Order{}, err
	}
	o.Date = core.DateOf(date)
	o.Status = core.OrderStatus(status)
	return o, nil
}

// Content

func (s *Store) SaveSection(ctx context.Context, sec core.Section) error {
	data, err := json.Marshal(sec)
	if err != nil {
		return fmt.Errorf("encode section %s: %w", sec.Kind(), err)
	}
	const q = `
INSERT INTO content_sections (kind, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (kind) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := s.pool.Exec(ctx, q, string(sec.Kind()), data); err != nil {
		return fmt.Errorf("save section %s: %w", sec.Kind(), err)
	}
	return nil
}

func (s *Store) GetSection(ctx context.Context, kind core.SectionKind) (core.Section, error) {
	var data []byte
	if err := s.pool.QueryRow(ctx, `SELECT data FROM content_sections WHERE kind = $1`, string(kind)).Scan(&data); err != nil {
		return nil, mapErr(err)
	}
	return core.DecodeSectionData(kind, data)
}

func (s *Store) ListSections(ctx context.Context) ([]core.Section, error) {
	rows, err := s.pool.Query(ctx, `SELECT kind, data FROM content_sections`)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()
	byKind := map[core.SectionKind]core.Section{}
	for rows.Next() {
		var (
			kind string
			data []byte
		)
		if err := rows.Scan(&kind, &data); err != nil {
			return nil, err
		}
		sec, err := core.DecodeSectionData(core.SectionKind(kind), data)
		if err != nil {
			return nil, err
		}
		byKind[sec.Kind()] = sec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var out []core.Section
	for _, k := range core.SectionKinds {
		if sec, ok := byKind[k]; ok {
			out = append(out, sec)
		}
	}
	return out, nil
}

// Admins

func (s *Store) UpsertAdmin(ctx context.Context, u core.AdminUser) error {
	const q = `
INSERT INTO admin_users (id, email, password_hash) VALUES ($1, $2, $3)
ON CONFLICT ((lower(email))) DO UPDATE SET password_hash = EXCLUDED.password_hash`
	if _, err := s.pool.Exec(ctx, q, u.ID, u.Email, u.PasswordHash); err != nil {
		return fmt.Errorf("upsert admin %s: %w", u.Email, err)
	}
	return nil
}

func (s *Store) GetAdminByEmail(ctx context.Context, email string) (core.AdminUser, error) {
	var u core.AdminUser
	const q = `SELECT id, email, password_hash, created_at FROM admin_users WHERE lower(email) = lower($1)`
	if err := s.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return core.AdminUser{}, mapErr(err)
	}
	return u, nil
}
