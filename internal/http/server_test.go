package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ssfarm/internal/auth"
	"ssfarm/internal/billing"
	"ssfarm/internal/core"
	"ssfarm/internal/observability"
	"ssfarm/internal/services"
	"ssfarm/internal/storage/memory"
)

const (
	adminEmail    = "admin@farm.test"
	adminPassword = "correct horse"
)

var june = billing.Period{Year: 2024, Month: time.June}

type testEnv struct {
	srv    *Server
	store  *memory.Store
	svc    Services
	shares *shareRecorder
	cookie *http.Cookie
}

type shareRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *shareRecorder) PublishBillShared(_ context.Context, customerID string, year, month int, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%s:%d-%02d:%s", customerID, year, month, channel))
	return nil
}

func (r *shareRecorder) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestEnv(t *testing.T, checks map[string]func(context.Context) error) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	b := services.NewBillingService(store, nil, 2)
	customers := services.NewCustomerService(store, b)
	deliveries := services.NewDeliveryService(store, b)
	shares := &shareRecorder{}
	svc := Services{
		Billing:    b,
		Customers:  customers,
		Deliveries: deliveries,
		Payments:   services.NewPaymentService(store, b),
		Orders:     services.NewOrderService(store, b),
		Content:    services.NewContentService(store),
		Share:      services.NewShareService(b, shares, nil, services.FarmProfile{Name: "Green Farm", Phone: "9800000000", UPIVPA: "greenfarm@upi"}),
		Export:     services.NewExportService(store, b, customers, deliveries, nil, nil),
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := auth.EnsureAdmin(ctx, store, adminEmail, string(hash)); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	authSvc := auth.NewService(store, "test-secret-0123456789abcdef", time.Hour)

	srv := NewServer(":0", Deps{
		Services:    svc,
		Auth:        authSvc,
		Metrics:     observability.NewMetrics(),
		ReadyChecks: checks,
		FarmName:    "Green Farm",
	})
	srv.now = func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) }

	token, _, err := authSvc.Login(ctx, adminEmail, adminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return &testEnv{
		srv:    srv,
		store:  store,
		svc:    svc,
		shares: shares,
		cookie: &http.Cookie{Name: auth.CookieName, Value: token},
	}
}

// seed creates Asha (₹60/L) with 2.5 L and a ₹100 payment in June 2024.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.svc.Customers.Create(ctx, core.Customer{ID: "asha", Name: "Asha Rao", Phone: "9876543210", MilkPrice: 60, DefaultQty: 1}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	for _, d := range []struct {
		day int
		qty float64
	}{{1, 1}, {2, 1.5}} {
		if err := e.svc.Deliveries.Record(ctx, "asha", core.NewDate(2024, 6, d.day), d.qty); err != nil {
			t.Fatalf("record delivery: %v", err)
		}
	}
	if _, err := e.svc.Payments.Record(ctx, core.Payment{CustomerID: "asha", Date: core.NewDate(2024, 6, 5), Amount: 100}); err != nil {
		t.Fatalf("record payment: %v", err)
	}
}

type reqOpt func(*http.Request)

func withCookie(c *http.Cookie) reqOpt { return func(r *http.Request) { r.AddCookie(c) } }

func htmx(r *http.Request) { r.Header.Set("HX-Request", "true") }

func (e *testEnv) do(method, target string, body string, opts ...reqOpt) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, o := range opts {
		o(req)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// admin sends an authenticated HTMX request.
func (e *testEnv) admin(method, target, body string) *httptest.ResponseRecorder {
	return e.do(method, target, body, withCookie(e.cookie), htmx)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, map[string]func(context.Context) error{
		"store": func(context.Context) error { return nil },
	})
	if rr := env.do(http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	rr := env.do(http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}

	failing := newTestEnv(t, map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rr = failing.do(http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var payload struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if payload.Status != "not_ready" || payload.Checks["redis"] != "connection refused" || payload.Checks["templates"] != "ok" {
		t.Errorf("unexpected readiness payload: %+v", payload)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, nil)

	req := func(r *http.Request) { r.Header.Set("Accept", "text/html") }
	rr := env.do(http.MethodGet, "/", "", req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(http.MethodPost, "/payments", "customer_id=x", htmx)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for HTMX without session, got %d", rr.Code)
	}

	// Public surfaces stay open.
	if rr := env.do(http.MethodGet, "/api/content", ""); rr.Code != http.StatusOK {
		t.Errorf("public content status=%d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/login", ""); rr.Code != http.StatusOK {
		t.Errorf("login page status=%d", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{"missing password", url.Values{"email": {adminEmail}}, http.StatusUnprocessableEntity, "password is required"},
		{"bad email", url.Values{"email": {"nope"}, "password": {"x"}}, http.StatusUnprocessableEntity, "email must be an email address"},
		{"wrong password", url.Values{"email": {adminEmail}, "password": {"wrong"}}, http.StatusUnauthorized, "Wrong email or password"},
		{"success", url.Values{"email": {"ADMIN@farm.test"}, "password": {adminPassword}}, http.StatusSeeOther, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/login", tt.form.Encode())
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q: %s", tt.wantBody, rr.Body.String())
			}
			if tt.wantStatus == http.StatusSeeOther {
				var found bool
				for _, c := range rr.Result().Cookies() {
					if c.Name == auth.CookieName && c.Value != "" && c.HttpOnly {
						found = true
					}
				}
				if !found {
					t.Error("expected session cookie")
				}
			}
		})
	}

	rr := env.do(http.MethodPost, "/logout", "", withCookie(env.cookie))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Errorf("logout: %d %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestDashboardShowsMonthlyBills(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	rr := env.do(http.MethodGet, "/?year=2024&month=6", "", withCookie(env.cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Asha Rao", "₹150.00", "₹100.00", "₹50.00", "Partially paid", "June 2024"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}

	rr = env.admin(http.MethodGet, "/ui/bills?year=2024&month=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("partial status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<html") {
		t.Error("partial should not contain the layout")
	}
	if !strings.Contains(rr.Body.String(), "Asha Rao") || !strings.Contains(rr.Body.String(), "No bill") {
		t.Error("active customers are listed even without activity")
	}

	if rr := env.admin(http.MethodGet, "/?year=2024&month=13", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid month status=%d", rr.Code)
	}
}

func TestBillPagesAndShare(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	rr := env.admin(http.MethodGet, "/bills/asha?year=2024&month=6", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Closing balance") {
		t.Fatalf("bill page status=%d", rr.Code)
	}

	// No Gotenberg configured: the printable HTML is served.
	rr = env.admin(http.MethodGet, "/bills/asha/pdf?year=2024&month=6", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("pdf fallback: %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = env.admin(http.MethodGet, "/bills/asha/share?year=2024&month=6", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("share status=%d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "https://wa.me/919876543210") || !strings.Contains(body, "upi://pay") {
		t.Errorf("share panel missing links: %s", body)
	}
	if got := env.shares.published(); len(got) != 0 {
		t.Errorf("viewing the share panel must not publish, got %v", got)
	}

	rr = env.admin(http.MethodPost, "/bills/asha/share?year=2024&month=6", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("HX-Trigger"), "Share recorded") {
		t.Fatalf("mark shared: %d %q", rr.Code, rr.Header().Get("HX-Trigger"))
	}
	if got := env.shares.published(); len(got) != 1 || got[0] != "asha:2024-06:whatsapp" {
		t.Errorf("published = %v", got)
	}
	if rr := env.admin(http.MethodPost, "/bills/ghost/share?year=2024&month=6", ""); rr.Code != http.StatusNotFound {
		t.Errorf("share of unknown customer status=%d", rr.Code)
	}

	if rr := env.admin(http.MethodGet, "/bills/ghost?year=2024&month=6", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown customer status=%d", rr.Code)
	}

	rr = env.admin(http.MethodGet, "/status?year=2024&month=6", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "outstanding") {
		t.Errorf("status page: %d", rr.Code)
	}
}

func TestRecordDeliveries(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)
	ctx := context.Background()

	rr := env.admin(http.MethodPost, "/deliveries", "date=2024-06-03&qty_asha=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("day sheet status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventLedgerChanged) {
		t.Errorf("expected ledger trigger, got %q", rr.Header().Get("HX-Trigger"))
	}

	// Single entry clears day 1.
	rr = env.admin(http.MethodPost, "/deliveries", "date=2024-06-01&customer_id=asha&quantity=0")
	if rr.Code != http.StatusOK {
		t.Fatalf("single entry status=%d", rr.Code)
	}

	b, err := env.svc.Billing.Bill(ctx, "asha", june)
	if err != nil {
		t.Fatalf("bill: %v", err)
	}
	if b.Summary.PeriodDeliveryQuantity != 3.5 || b.Summary.DeliveryCount != 2 {
		t.Errorf("quantity=%v count=%d, want 3.5 over 2 days", b.Summary.PeriodDeliveryQuantity, b.Summary.DeliveryCount)
	}

	if rr := env.admin(http.MethodPost, "/deliveries", "date=2024-06-40&qty_asha=1"); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad date status=%d", rr.Code)
	}
	rr = env.admin(http.MethodPost, "/deliveries", "date=2024-06-04&qty_asha=-1")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("HX-Trigger"), "rejected") {
		t.Errorf("negative entry should be reported: %d %q", rr.Code, rr.Header().Get("HX-Trigger"))
	}

	rr = env.admin(http.MethodGet, "/deliveries?date=2024-06-03", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `name="qty_asha" value="2"`) {
		t.Errorf("day sheet should show saved quantity: %s", rr.Body.String())
	}
}

func TestRecordPayments(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	tests := []struct {
		name       string
		form       string
		wantStatus int
	}{
		{"missing customer", "date=2024-06-10&amount=50", http.StatusUnprocessableEntity},
		{"bad date", "customer_id=asha&date=10/06/2024&amount=50", http.StatusUnprocessableEntity},
		{"negative without refund", "customer_id=asha&date=2024-06-10&amount=-20", http.StatusUnprocessableEntity},
		{"refund", "customer_id=asha&date=2024-06-10&amount=20&refund=on", http.StatusOK},
		{"payment", "customer_id=asha&date=2024-06-12&amount=1,000", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.admin(http.MethodPost, "/payments", tt.form)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	rows, err := env.svc.Payments.ForPeriod(context.Background(), june)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	var total float64
	var refundID string
	for _, r := range rows {
		total += r.Payment.Amount
		if r.Payment.IsRefund() {
			refundID = r.Payment.ID
		}
	}
	if total != 1080 {
		t.Errorf("total paid = %v, want 1080", total)
	}

	if rr := env.admin(http.MethodDelete, "/payments/"+refundID, ""); rr.Code != http.StatusOK {
		t.Fatalf("delete payment status=%d", rr.Code)
	}
	if rr := env.admin(http.MethodDelete, "/payments/"+refundID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d", rr.Code)
	}
}

func TestCustomerLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	rr := env.admin(http.MethodPost, "/customers", "name=Meena&phone=98765-43210&milk_price=55&default_qty=2")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Meena") {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.admin(http.MethodPost, "/customers", "name=Bad&milk_price=abc"); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad price status=%d", rr.Code)
	}
	if rr := env.admin(http.MethodPost, "/customers", "name=&milk_price=50"); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing name status=%d", rr.Code)
	}

	cs, _ := env.svc.Customers.List(ctx)
	if len(cs) != 1 {
		t.Fatalf("expected one customer, got %d", len(cs))
	}
	id := cs[0].ID

	rr = env.admin(http.MethodPost, "/customers/"+id, "name=Meena K&milk_price=58&status=inactive")
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = env.admin(http.MethodPost, "/customers/"+id+"/balance", "amount=250&as_of=2024-05-31")
	if rr.Code != http.StatusOK {
		t.Fatalf("balance status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.admin(http.MethodPost, "/customers/"+id+"/balance", "amount=250"); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("balance without date status=%d", rr.Code)
	}

	c, err := env.svc.Customers.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Name != "Meena K" || c.MilkPrice != 58 || c.Status != core.CustomerInactive {
		t.Errorf("update not applied: %+v", c)
	}
	if c.PreviousBalance == nil || *c.PreviousBalance != 250 || c.BalanceAsOf.String() != "2024-05-31" {
		t.Errorf("snapshot not stored: %+v", c)
	}

	rr = env.admin(http.MethodGet, "/customers/"+id+"/calendar?year=2024&month=6", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `id="calendar"`) {
		t.Errorf("calendar partial status=%d", rr.Code)
	}

	if rr := env.admin(http.MethodDelete, "/customers/"+id, ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := env.admin(http.MethodDelete, "/customers/"+id, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d", rr.Code)
	}
}

func TestPublicOrderWorkflow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)
	tomorrow := core.DateOf(time.Now().AddDate(0, 0, 1)).String()

	post := func(body, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rr, req)
		return rr
	}

	rr := post(`{"customer_id":"asha","date":"`+tomorrow+`","quantity":2}`, "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != "pending" || created.Quantity != 2 {
		t.Errorf("unexpected order: %+v", created)
	}

	if rr := post("customer_id=asha&date="+tomorrow+"&quantity=1", "application/x-www-form-urlencoded"); rr.Code != http.StatusConflict {
		t.Errorf("duplicate status=%d", rr.Code)
	}
	if rr := post(`{"customer_id":"asha","date":"2020-01-01","quantity":1}`, "application/json"); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("past date status=%d", rr.Code)
	}
	if rr := post(`{"customer_id":"ghost","date":"`+tomorrow+`","quantity":1}`, "application/json"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown customer status=%d", rr.Code)
	}
	if rr := post(`{"customer_id":"asha"`, "application/json"); rr.Code != http.StatusBadRequest {
		t.Errorf("malformed json status=%d", rr.Code)
	}

	rr = env.admin(http.MethodGet, "/orders", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "/orders/"+created.ID+"/confirm") {
		t.Fatalf("orders list missing pending order: %d", rr.Code)
	}
	if rr := env.admin(http.MethodPost, "/orders/"+created.ID+"/confirm", ""); rr.Code != http.StatusOK {
		t.Fatalf("confirm status=%d", rr.Code)
	}
	if rr := env.admin(http.MethodPost, "/orders/"+created.ID+"/reject", ""); rr.Code != http.StatusConflict {
		t.Errorf("reject after confirm status=%d", rr.Code)
	}
	if rr := env.admin(http.MethodGet, "/orders?status=bogus", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad filter status=%d", rr.Code)
	}
}

func TestCSVExportAndImport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	rr := env.admin(http.MethodGet, "/export/customers.csv", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("customers csv: %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rr.Body.String(), "id,name,address,phone") || !strings.Contains(rr.Body.String(), "Asha Rao") {
		t.Errorf("unexpected csv: %s", rr.Body.String())
	}

	rr = env.admin(http.MethodGet, "/export/bills.csv?year=2024&month=6", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("Content-Disposition"), "bills-2024-06.csv") {
		t.Errorf("bills csv: %d %q", rr.Code, rr.Header().Get("Content-Disposition"))
	}

	if rr := env.admin(http.MethodGet, "/export/deliveries.csv?from=2024-06-30&to=2024-06-01", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted range status=%d", rr.Code)
	}

	// Neither queue nor spreadsheet configured.
	if rr := env.admin(http.MethodPost, "/export/sheets?year=2024&month=6", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("sheets export status=%d", rr.Code)
	}
}

func TestContentEditing(t *testing.T) {
	env := newTestEnv(t, nil)

	form := url.Values{"data": {`{"title": ""}`}}
	if rr := env.admin(http.MethodPost, "/content/hero", form.Encode()); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty hero status=%d", rr.Code)
	}
	form = url.Values{"data": {`{"title": "Fresh A2 milk"`}}
	if rr := env.admin(http.MethodPost, "/content/hero", form.Encode()); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("broken json status=%d", rr.Code)
	}
	if rr := env.admin(http.MethodPost, "/content/banner", form.Encode()); rr.Code != http.StatusNotFound {
		t.Errorf("unknown kind status=%d", rr.Code)
	}

	form = url.Values{"data": {`{"title": "Fresh A2 milk", "subtitle": "Delivered at dawn"}`}}
	rr := env.admin(http.MethodPost, "/content/hero", form.Encode())
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("HX-Trigger"), EventContentSaved) {
		t.Fatalf("save hero: %d %q", rr.Code, rr.Header().Get("HX-Trigger"))
	}

	rr = env.do(http.MethodGet, "/api/content", "")
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if !strings.Contains(string(payload["hero"]), "Fresh A2 milk") {
		t.Errorf("hero not published: %s", payload["hero"])
	}

	rr = env.admin(http.MethodGet, "/content", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Delivered at dawn") {
		t.Errorf("content editor status=%d", rr.Code)
	}
}

func TestMetricsAndProbes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)
	env.admin(http.MethodPost, "/deliveries", "date=2024-06-03&qty_asha=2")

	if rr := env.do(http.MethodGet, "/.env", ""); rr.Code != http.StatusNotFound {
		t.Errorf("probe status=%d", rr.Code)
	}

	rr := env.do(http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"ssfarm_http_requests_total",
		`ssfarm_ledger_writes_total{kind="delivery"} 1`,
		"ssfarm_blocked_probes_total 1",
		"ssfarm_bill_cache_misses_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
