package ports

import (
	"context"
	"errors"

	"ssfarm/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Ports for outbound adapters.
type (
	CustomerStore interface {
		CreateCustomer(ctx context.Context, c core.Customer) error
		UpdateCustomer(ctx context.Context, c core.Customer) error
		DeleteCustomer(ctx context.Context, id string) error
		GetCustomer(ctx context.Context, id string) (core.Customer, error)
		ListCustomers(ctx context.Context) ([]core.Customer, error)
	}

	DeliveryStore interface {
		// UpsertDelivery inserts or replaces the record for (CustomerID, Date).
		UpsertDelivery(ctx context.Context, d core.Delivery) error
		DeleteDelivery(ctx context.Context, customerID string, date core.Date) error
		// ListDeliveries returns a customer's deliveries dated on or before upTo.
		ListDeliveries(ctx context.Context, customerID string, upTo core.Date) ([]core.Delivery, error)
		// ListDeliveriesBetween returns all deliveries in [from, to] for every customer.
		ListDeliveriesBetween(ctx context.Context, from, to core.Date) ([]core.Delivery, error)
	}

	PaymentStore interface {
		CreatePayment(ctx context.Context, p core.Payment) error
		DeletePayment(ctx context.Context, id string) (core.Payment, error)
		ListPayments(ctx context.Context, customerID string, upTo core.Date) ([]core.Payment, error)
		ListPaymentsBetween(ctx context.Context, from, to core.Date) ([]core.Payment, error)
	}

	OrderStore interface {
		CreateOrder(ctx context.Context, o core.Order) error
		GetOrder(ctx context.Context, id string) (core.Order, error)
		SetOrderStatus(ctx context.Context, id string, status core.OrderStatus) error
		ListOrders(ctx context.Context, status core.OrderStatus) ([]core.Order, error)
		// HasOrder reports whether a non-rejected order exists for (customerID, date).
		HasOrder(ctx context.Context, customerID string, date core.Date) (bool, error)
	}

	ContentStore interface {
		SaveSection(ctx context.Context, s core.Section) error
		GetSection(ctx context.Context, kind core.SectionKind) (core.Section, error)
		ListSections(ctx context.Context) ([]core.Section, error)
	}

	AdminStore interface {
		UpsertAdmin(ctx context.Context, u core.AdminUser) error
		GetAdminByEmail(ctx context.Context, email string) (core.AdminUser, error)
	}

	// Store is everything a backend provides.
	Store interface {
		CustomerStore
		DeliveryStore
		PaymentStore
		OrderStore
		ContentStore
		AdminStore
		Ping(ctx context.Context) error
		Close() error
	}
)
