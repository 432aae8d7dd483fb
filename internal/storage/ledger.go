package storage

import (
	"context"
	"database/sql"
	"fmt"

	"ssfarm/internal/core"
	"ssfarm/internal/ports"
)

// UpsertDelivery replaces any existing record for (customer_id, date); last write wins.
func (r *SQLiteRepository) UpsertDelivery(ctx context.Context, d core.Delivery) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, customer_id, date, quantity, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (customer_id, date) DO UPDATE
		SET quantity = excluded.quantity, updated_at = excluded.updated_at`,
		d.ID, d.CustomerID, d.Date.String(), d.Quantity, now())
	if isForeignKeyViolation(err) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert delivery %s/%s: %w", d.CustomerID, d.Date, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteDelivery(ctx context.Context, customerID string, date core.Date) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deliveries WHERE customer_id = ? AND date = ?`, customerID, date.String()); err != nil {
		return fmt.Errorf("delete delivery %s/%s: %w", customerID, date, err)
	}
	return nil
}

func (r *SQLiteRepository) ListDeliveries(ctx context.Context, customerID string, upTo core.Date) ([]core.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, date, quantity FROM deliveries
		WHERE customer_id = ? AND date <= ?
		ORDER BY date`, customerID, upTo.String())
	if err != nil {
		return nil, fmt.Errorf("list deliveries for %s: %w", customerID, err)
	}
	return collectDeliveries(rows)
}

func (r *SQLiteRepository) ListDeliveriesBetween(ctx context.Context, from, to core.Date) ([]core.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, date, quantity FROM deliveries
		WHERE date BETWEEN ? AND ?
		ORDER BY date, customer_id`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list deliveries %s..%s: %w", from, to, err)
	}
	return collectDeliveries(rows)
}

func collectDeliveries(rows *sql.Rows) ([]core.Delivery, error) {
	defer rows.Close()
	var out []core.Delivery
	for rows.Next() {
		var (
			d    core.Delivery
			date string
		)
		if err := rows.Scan(&d.ID, &d.CustomerID, &date, &d.Quantity); err != nil {
			return nil, err
		}
		parsed, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		d.Date = parsed
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, customer_id, date, amount, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.CustomerID, p.Date.String(), p.Amount, p.Note, now())
	if isForeignKeyViolation(err) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeletePayment(ctx context.Context, id string) (core.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM payments WHERE id = ?
		RETURNING id, customer_id, date, amount, note`, id)
	p, err := scanPayment(row)
	if err != nil {
		return core.Payment{}, notFound(err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPayments(ctx context.Context, customerID string, upTo core.Date) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, date, amount, note FROM payments
		WHERE customer_id = ? AND date <= ?
		ORDER BY date, id`, customerID, upTo.String())
	if err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", customerID, err)
	}
	return collectPayments(rows)
}

func (r *SQLiteRepository) ListPaymentsBetween(ctx context.Context, from, to core.Date) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, date, amount, note FROM payments
		WHERE date BETWEEN ? AND ?
		ORDER BY date, id`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list payments %s..%s: %w", from, to, err)
	}
	return collectPayments(rows)
}

func scanPayment(s scanner) (core.Payment, error) {
	var (
		p    core.Payment
		date string
	)
	if err := s.Scan(&p.ID, &p.CustomerID, &date, &p.Amount, &p.Note); err != nil {
		return core.Payment{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return core.Payment{}, err
	}
	p.Date = d
	return p, nil
}

func collectPayments(rows *sql.Rows) ([]core.Payment, error) {
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
