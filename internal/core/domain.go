package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const (
	CustomerActive   CustomerStatus = "active"
	CustomerInactive CustomerStatus = "inactive"
)

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderRejected  OrderStatus = "rejected"
)

type (
	CustomerStatus string
	OrderStatus    string

	// Date is a calendar day in UTC. The time-of-day is always midnight.
	Date struct {
		time.Time
	}

	Customer struct {
		ID         string
		Name       string
		Address    string
		Phone      string
		MilkPrice  float64 // per litre
		DefaultQty float64 // litres per day used by the order scheduler
		Status     CustomerStatus
		// Operator-entered balance snapshot. Both must be set for the
		// snapshot to be used when computing opening balances.
		PreviousBalance *float64
		BalanceAsOf     *Date
		CreatedAt       time.Time
	}

	Delivery struct {
		ID         string
		CustomerID string
		Date       Date
		Quantity   float64
	}

	Payment struct {
		ID         string
		CustomerID string
		Date       Date
		Amount     float64 // negative amounts are refunds
		Note       string
	}

	// Order is a requested delivery awaiting confirmation.
	Order struct {
		ID         string
		CustomerID string
		Date       Date
		Quantity   float64
		Status     OrderStatus
		CreatedAt  time.Time
	}

	AdminUser struct {
		ID           string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyName       = errors.New("empty customer name")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidPrice    = errors.New("invalid milk price")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrMissingCustomer = errors.New("missing customer id")
	ErrIncompleteSnap  = errors.New("balance snapshot needs both amount and date")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// AddDays returns the date n days later (or earlier when n < 0).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (s CustomerStatus) Valid() bool {
	return s == CustomerActive || s == CustomerInactive
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderRejected:
		return true
	}
	return false
}

// HasSnapshot reports whether the customer carries a usable balance snapshot.
func (c Customer) HasSnapshot() bool {
	return c.PreviousBalance != nil && c.BalanceAsOf != nil && !c.BalanceAsOf.IsZero()
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 120 {
		return errors.New("name too long (max 120 characters)")
	}
	if c.Phone != "" && len(digits(c.Phone)) < 10 {
		return ErrInvalidPhone
	}
	if c.MilkPrice < 0 {
		return ErrInvalidPrice
	}
	if c.DefaultQty < 0 {
		return ErrInvalidQuantity
	}
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	if (c.PreviousBalance == nil) != (c.BalanceAsOf == nil) {
		return ErrIncompleteSnap
	}
	return nil
}

func (d Delivery) Validate() error {
	if strings.TrimSpace(d.CustomerID) == "" {
		return ErrMissingCustomer
	}
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if d.Quantity < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.CustomerID) == "" {
		return ErrMissingCustomer
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if p.Amount == 0 {
		return ErrInvalidAmount
	}
	if len(p.Note) > 200 {
		return errors.New("note too long (max 200 characters)")
	}
	return nil
}

// IsRefund reports whether the payment returns money to the customer.
func (p Payment) IsRefund() bool {
	return p.Amount < 0
}

func (o Order) Validate() error {
	if strings.TrimSpace(o.CustomerID) == "" {
		return ErrMissingCustomer
	}
	if err := o.Date.Validate(); err != nil {
		return err
	}
	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !o.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// PhoneDigits returns the phone number stripped of everything but digits.
func PhoneDigits(phone string) string {
	return digits(phone)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
