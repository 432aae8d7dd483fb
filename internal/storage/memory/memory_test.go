package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ssfarm/internal/core"
	"ssfarm/internal/ports"
)

func TestMemoryStoreDeliveryUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateCustomer(ctx, core.Customer{ID: "c1", Name: "Asha", Status: core.CustomerActive}); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	day := core.NewDate(2024, 6, 5)
	if err := s.UpsertDelivery(ctx, core.Delivery{ID: "d1", CustomerID: "c1", Date: day, Quantity: 1}); err != nil {
		t.Fatalf("UpsertDelivery: %v", err)
	}
	if err := s.UpsertDelivery(ctx, core.Delivery{ID: "d2", CustomerID: "c1", Date: day, Quantity: 2.5}); err != nil {
		t.Fatalf("UpsertDelivery: %v", err)
	}

	got, err := s.ListDeliveries(ctx, "c1", core.NewDate(2024, 6, 30))
	if err != nil {
		t.Fatalf("ListDeliveries: %v", err)
	}
	if len(got) != 1 || got[0].Quantity != 2.5 || got[0].ID != "d1" {
		t.Fatalf("expected single upserted record keeping its id, got %+v", got)
	}

	if got, _ := s.ListDeliveries(ctx, "c1", core.NewDate(2024, 6, 4)); len(got) != 0 {
		t.Fatalf("upTo should exclude later deliveries, got %+v", got)
	}

	if err := s.UpsertDelivery(ctx, core.Delivery{CustomerID: "missing", Date: day, Quantity: 1}); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown customer, got %v", err)
	}
}

func TestMemoryStoreDeleteCustomerCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.CreateCustomer(ctx, core.Customer{ID: "c1", Name: "Asha", Status: core.CustomerActive})
	_ = s.UpsertDelivery(ctx, core.Delivery{ID: "d1", CustomerID: "c1", Date: core.NewDate(2024, 6, 5), Quantity: 1})
	_ = s.CreatePayment(ctx, core.Payment{ID: "p1", CustomerID: "c1", Date: core.NewDate(2024, 6, 6), Amount: 10})

	if err := s.DeleteCustomer(ctx, "c1"); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}
	ds, _ := s.ListDeliveriesBetween(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	ps, _ := s.ListPaymentsBetween(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	if len(ds) != 0 || len(ps) != 0 {
		t.Fatalf("expected cascade delete, got deliveries=%v payments=%v", ds, ps)
	}
	if _, err := s.GetCustomer(ctx, "c1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreOrders(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.CreateCustomer(ctx, core.Customer{ID: "c1", Name: "Asha", Status: core.CustomerActive})
	day := core.NewDate(2024, 6, 7)
	_ = s.CreateOrder(ctx, core.Order{ID: "o1", CustomerID: "c1", Date: day, Quantity: 1, Status: core.OrderPending})

	if ok, _ := s.HasOrder(ctx, "c1", day); !ok {
		t.Fatalf("expected pending order to count")
	}
	_ = s.SetOrderStatus(ctx, "o1", core.OrderRejected)
	if ok, _ := s.HasOrder(ctx, "c1", day); ok {
		t.Fatalf("rejected order should not count")
	}
	if pending, _ := s.ListOrders(ctx, core.OrderPending); len(pending) != 0 {
		t.Fatalf("expected no pending orders, got %v", pending)
	}
}

func TestNewFromFilesSeedsCustomers(t *testing.T) {
	dir := t.TempDir()
	if s := NewFromFiles(dir); len(s.customers) != 0 {
		t.Fatalf("expected empty store when seed file is missing")
	}

	content := "name,phone,milk_price,default_qty\n" +
		"Asha,9876543210,60,1\n" +
		"\n" +
		"Ravi,,55,2\n" +
		",bad,1,1\n" +
		"Meena,9000000000,6o,1\n"
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s := NewFromFiles(dir)
	cs, _ := s.ListCustomers(context.Background())
	if len(cs) != 2 {
		t.Fatalf("expected 2 seeded customers, got %+v", cs)
	}
	if cs[0].Name != "Asha" || cs[0].MilkPrice != 60 || cs[1].Name != "Ravi" || cs[1].MilkPrice != 55 {
		t.Fatalf("unexpected seeded customers: %+v", cs)
	}
	for _, c := range cs {
		if c.Name == "Meena" {
			t.Fatalf("row with an unparseable price must be skipped, got %+v", c)
		}
	}
}

func TestListCustomersOrdersNamesIgnoringCase(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, c := range []core.Customer{
		{ID: "c3", Name: "asha", Status: core.CustomerActive},
		{ID: "c1", Name: "Ravi", Status: core.CustomerActive},
		{ID: "c2", Name: "Asha", Status: core.CustomerActive},
		{ID: "c0", Name: "ASHA", Status: core.CustomerActive},
	} {
		if err := s.CreateCustomer(ctx, c); err != nil {
			t.Fatalf("CreateCustomer: %v", err)
		}
	}

	for i := 0; i < 20; i++ {
		cs, err := s.ListCustomers(ctx)
		if err != nil {
			t.Fatalf("ListCustomers: %v", err)
		}
		var ids []string
		for _, c := range cs {
			ids = append(ids, c.ID)
		}
		want := []string{"c0", "c2", "c3", "c1"}
		for j := range want {
			if ids[j] != want[j] {
				t.Fatalf("order = %v, want %v", ids, want)
			}
		}
	}
}
