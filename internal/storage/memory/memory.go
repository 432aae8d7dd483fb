package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ssfarm/internal/core"
	"ssfarm/internal/export/csvio"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
)

var _ ports.Store = (*Store)(nil)

type deliveryKey struct {
	customerID string
	date       string
}

// Store keeps everything in process memory. Used by the memory backend and tests.
type Store struct {
	mu         sync.Mutex
	customers  map[string]core.Customer
	deliveries map[deliveryKey]core.Delivery
	payments   map[string]core.Payment
	orders     map[string]core.Order
	sections   map[core.SectionKind]core.Section
	admins     map[string]core.AdminUser
}

func New() *Store {
	return &Store{
		customers:  map[string]core.Customer{},
		deliveries: map[deliveryKey]core.Delivery{},
		payments:   map[string]core.Payment{},
		orders:     map[string]core.Order{},
		sections:   map[core.SectionKind]core.Section{},
		admins:     map[string]core.AdminUser{},
	}
}

// SeedFile is the customer sheet NewFromFiles looks for in its directory.
const SeedFile = "customers.csv"

// NewFromFiles seeds customers from base/customers.csv when present, using the
// customer import format. Rows that fail to parse or validate are logged and skipped.
func NewFromFiles(base string) *Store {
	s := New()
	logger := applog.ForComponent(applog.ComponentStorage)
	path := filepath.Join(base, SeedFile)

	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to open customer seed", applog.FieldError, err, "path", path)
		}
		return s
	}
	defer f.Close()

	records, res, err := csvio.ReadCustomers(f)
	if err != nil {
		logger.Warn("Failed to read customer seed", applog.FieldError, err, "path", path)
		return s
	}
	for _, rowErr := range res.Errors {
		logger.Warn("Skipped customer seed row", "path", path, "line", rowErr.Line, applog.FieldError, rowErr.Err)
	}
	for i, rec := range records {
		c := rec.Customer
		if c.ID == "" {
			c.ID = fmt.Sprintf("seed-%d", i+1)
		}
		if _, dup := s.customers[c.ID]; dup {
			logger.Warn("Skipped duplicate customer seed row", "path", path, "line", rec.Line, applog.FieldCustomerID, c.ID)
			continue
		}
		c.CreatedAt = time.Now()
		s.customers[c.ID] = c
	}
	logger.Info("Seeded customers", "path", path, applog.FieldCount, len(s.customers), "skipped", res.Skipped)
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateCustomer(_ context.Context, c core.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; ok {
		return ports.ErrConflict
	}
	s.customers[c.ID] = c
	return nil
}

func (s *Store) UpdateCustomer(_ context.Context, c core.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.customers[c.ID]
	if !ok {
		return ports.ErrNotFound
	}
	c.CreatedAt = old.CreatedAt
	s.customers[c.ID] = c
	return nil
}

// DeleteCustomer removes the customer and cascades to its records.
func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.customers, id)
	for k := range s.deliveries {
		if k.customerID == id {
			delete(s.deliveries, k)
		}
	}
	for k, p := range s.payments {
		if p.CustomerID == id {
			delete(s.payments, k)
		}
	}
	for k, o := range s.orders {
		if o.CustomerID == id {
			delete(s.orders, k)
		}
	}
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return core.Customer{}, ports.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCustomers(context.Context) ([]core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpsertDelivery(_ context.Context, d core.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[d.CustomerID]; !ok {
		return ports.ErrNotFound
	}
	k := deliveryKey{d.CustomerID, d.Date.String()}
	if old, ok := s.deliveries[k]; ok {
		d.ID = old.ID
	}
	s.deliveries[k] = d
	return nil
}

func (s *Store) DeleteDelivery(_ context.Context, customerID string, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deliveries, deliveryKey{customerID, date.String()})
	return nil
}

func (s *Store) ListDeliveries(_ context.Context, customerID string, upTo core.Date) ([]core.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Delivery
	for k, d := range s.deliveries {
		if k.customerID == customerID && !d.Date.After(upTo) {
			out = append(out, d)
		}
	}
	sortDeliveries(out)
	return out, nil
}

func (s *Store) ListDeliveriesBetween(_ context.Context, from, to core.Date) ([]core.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Delivery
	for _, d := range s.deliveries {
		if !d.Date.Before(from) && !d.Date.After(to) {
			out = append(out, d)
		}
	}
	sortDeliveries(out)
	return out, nil
}

func (s *Store) CreatePayment(_ context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[p.CustomerID]; !ok {
		return ports.ErrNotFound
	}
	s.payments[p.ID] = p
	return nil
}

func (s *Store) DeletePayment(_ context.Context, id string) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return core.Payment{}, ports.ErrNotFound
	}
	delete(s.payments, id)
	return p, nil
}

func (s *Store) ListPayments(_ context.Context, customerID string, upTo core.Date) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Payment
	for _, p := range s.payments {
		if p.CustomerID == customerID && !p.Date.After(upTo) {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (s *Store) ListPaymentsBetween(_ context.Context, from, to core.Date) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Payment
	for _, p := range s.payments {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (s *Store) CreateOrder(_ context.Context, o core.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[o.CustomerID]; !ok {
		return ports.ErrNotFound
	}
	s.orders[o.ID] = o
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return core.Order{}, ports.ErrNotFound
	}
	return o, nil
}

func (s *Store) SetOrderStatus(_ context.Context, id string, status core.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	o.Status = status
	s.orders[id] = o
	return nil
}

func (s *Store) ListOrders(_ context.Context, status core.OrderStatus) ([]core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Order
	for _, o := range s.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) HasOrder(_ context.Context, customerID string, date core.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.CustomerID == customerID && o.Date.Equal(date) && o.Status != core.OrderRejected {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SaveSection(_ context.Context, sec core.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[sec.Kind()] = sec
	return nil
}

func (s *Store) GetSection(_ context.Context, kind core.SectionKind) (core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[kind]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return sec, nil
}

func (s *Store) ListSections(context.Context) ([]core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Section
	for _, k := range core.SectionKinds {
		if sec, ok := s.sections[k]; ok {
			out = append(out, sec)
		}
	}
	return out, nil
}

func (s *Store) UpsertAdmin(_ context.Context, u core.AdminUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[strings.ToLower(u.Email)] = u
	return nil
}

func (s *Store) GetAdminByEmail(_ context.Context, email string) (core.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.admins[strings.ToLower(email)]
	if !ok {
		return core.AdminUser{}, ports.ErrNotFound
	}
	return u, nil
}

func sortDeliveries(ds []core.Delivery) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].Date.Equal(ds[j].Date) {
			return ds[i].Date.Before(ds[j].Date)
		}
		return ds[i].CustomerID < ds[j].CustomerID
	})
}

func sortPayments(ps []core.Payment) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].Date.Equal(ps[j].Date) {
			return ps[i].Date.Before(ps[j].Date)
		}
		return ps[i].ID < ps[j].ID
	})
}
