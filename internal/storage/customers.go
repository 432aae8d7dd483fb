package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"ssfarm/internal/core"
	"ssfarm/internal/ports"
)

const customerColumns = `id, name, address, phone, milk_price, default_qty, status, previous_balance, balance_as_of, created_at`

func (r *SQLiteRepository) CreateCustomer(ctx context.Context, c core.Customer) error {
	prev, asOf := snapshotArgs(c)
	created := now()
	if !c.CreatedAt.IsZero() {
		created = c.CreatedAt.UTC().Format(timestampLayout)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Address, c.Phone, c.MilkPrice, c.DefaultQty, string(c.Status), prev, asOf, created)
	if isUniqueViolation(err) {
		return ports.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	slog.InfoContext(ctx, "Customer saved to SQLite", "customer_id", c.ID, "name", c.Name)
	return nil
}

func (r *SQLiteRepository) UpdateCustomer(ctx context.Context, c core.Customer) error {
	prev, asOf := snapshotArgs(c)
	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET name = ?, address = ?, phone = ?, milk_price = ?, default_qty = ?, status = ?,
		    previous_balance = ?, balance_as_of = ?
		WHERE id = ?`,
		c.Name, c.Address, c.Phone, c.MilkPrice, c.DefaultQty, string(c.Status), prev, asOf, c.ID)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", c.ID, err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) DeleteCustomer(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) GetCustomer(ctx context.Context, id string) (core.Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err != nil {
		return core.Customer{}, notFound(err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name COLLATE NOCASE, id`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(s scanner) (core.Customer, error) {
	var (
		c       core.Customer
		status  string
		prev    sql.NullFloat64
		asOf    sql.NullString
		created string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.MilkPrice, &c.DefaultQty, &status, &prev, &asOf, &created); err != nil {
		return core.Customer{}, err
	}
	c.Status = core.CustomerStatus(status)
	c.CreatedAt = parseTimestamp(created)
	if prev.Valid && asOf.Valid {
		d, err := parseDate(asOf.String)
		if err != nil {
			return core.Customer{}, err
		}
		v := prev.Float64
		c.PreviousBalance = &v
		c.BalanceAsOf = &d
	}
	return c, nil
}

func snapshotArgs(c core.Customer) (any, any) {
	if c.PreviousBalance == nil || c.BalanceAsOf == nil {
		return nil, nil
	}
	return *c.PreviousBalance, c.BalanceAsOf.String()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}
