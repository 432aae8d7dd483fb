package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ssfarm/internal/core"
	"ssfarm/internal/ports"
)

func (r *SQLiteRepository) CreateOrder(ctx context.Context, o core.Order) error {
	created := now()
	if !o.CreatedAt.IsZero() {
		created = o.CreatedAt.UTC().Format(timestampLayout)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, date, quantity, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.CustomerID, o.Date.String(), o.Quantity, string(o.Status), created)
	if isForeignKeyViolation(err) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetOrder(ctx context.Context, id string) (core.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, date, quantity, status, created_at FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return core.Order{}, notFound(err)
	}
	return o, nil
}

func (r *SQLiteRepository) SetOrderStatus(ctx context.Context, id string, status core.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) ListOrders(ctx context.Context, status core.OrderStatus) ([]core.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, date, quantity, status, created_at FROM orders
		WHERE ? = '' OR status = ?
		ORDER BY date, created_at`, string(status), string(status))
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

func (r *SQLiteRepository) HasOrder(ctx context.Context, customerID string, date core.Date) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE customer_id = ? AND date = ? AND status != 'rejected'`,
		customerID, date.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count orders: %w", err)
	}
	return n > 0, nil
}

func scanOrder(s scanner) (core.Order, error) {
	var (
		o       core.Order
		date    string
		status  string
		created string
	)
	if err := s.Scan(&o.ID, &o.CustomerID, &date, &o.Quantity, &status, &created); err != nil {
		return core.Order{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return core.Order{}, err
	}
	o.Date = d
	o.Status = core.OrderStatus(status)
	o.CreatedAt = parseTimestamp(created)
	return o, nil
}

func (r *SQLiteRepository) SaveSection(ctx context.Context, sec core.Section) error {
	data, err := json.Marshal(sec)
	if err != nil {
		return fmt.Errorf("encode section %s: %w", sec.Kind(), err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO content_sections (kind, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (kind) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(sec.Kind()), string(data), now())
	if err != nil {
		return fmt.Errorf("save section %s: %w", sec.Kind(), err)
	}
	return nil
}

func (r *SQLiteRepository) GetSection(ctx context.Context, kind core.SectionKind) (core.Section, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM content_sections WHERE kind = ?`, string(kind)).Scan(&data)
	if err != nil {
		return nil, notFound(err)
	}
	return core.DecodeSectionData(kind, []byte(data))
}

func (r *SQLiteRepository) ListSections(ctx context.Context) ([]core.Section, error) {
	var out []core.Section
	for _, kind := range core.SectionKinds {
		sec, err := r.GetSection(ctx, kind)
		if errors.Is(err, ports.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertAdmin(ctx context.Context, u core.AdminUser) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET password_hash = excluded.password_hash`,
		u.ID, u.Email, u.PasswordHash, now())
	if err != nil {
		return fmt.Errorf("upsert admin %s: %w", u.Email, err)
	}
	return nil
}

func (r *SQLiteRepository) GetAdminByEmail(ctx context.Context, email string) (core.AdminUser, error) {
	var (
		u       core.AdminUser
		created string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM admin_users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if err != nil {
		return core.AdminUser{}, notFound(err)
	}
	u.CreatedAt = parseTimestamp(created)
	return u, nil
}
