package pdf

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
)

func sampleDoc() BillDocument {
	return BillDocument{
		FarmName: "SS Farm",
		Customer: core.Customer{Name: "Asha <B>", Phone: "9876543210", MilkPrice: 60},
		Period:   billing.Period{Year: 2024, Month: time.June},
		Summary: billing.BillSummary{
			OpeningBalance:         100,
			PeriodDeliveryQuantity: 2.5,
			PeriodDeliveryAmount:   150,
			ClosingBalance:         250,
		},
		Items:       []billing.LineItem{{Date: core.NewDate(2024, 6, 3), Quantity: 2.5, Amount: 150}},
		Payments:    []core.Payment{{Date: core.NewDate(2024, 6, 9), Amount: -20, Note: "returned"}},
		GeneratedAt: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestRenderBillHTML(t *testing.T) {
	html, err := RenderBillHTML(sampleDoc())
	require.NoError(t, err)
	out := string(html)

	assert.Contains(t, out, "Bill for June 2024")
	assert.Contains(t, out, "Asha &lt;B&gt;", "customer name must be escaped")
	assert.Contains(t, out, "03 Jun")
	assert.Contains(t, out, "₹250.00")
	assert.Contains(t, out, "returned (refund)")
	assert.Contains(t, out, "Pending")
	assert.Contains(t, out, "Generated 01 Jul 2024 09:00")
}

func TestConvertHTML(t *testing.T) {
	var gotFile, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != convertPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		f, hdr, err := r.FormFile("files")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFile, gotName = string(b), hdr.Filename
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	pdf, err := c.RenderBill(context.Background(), sampleDoc())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Equal(t, "index.html", gotName)
	assert.Contains(t, gotFile, "Bill for June 2024")
}

func TestConvertHTMLErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ConvertHTML(context.Background(), []byte("<p>x</p>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestDisabledClient(t *testing.T) {
	c := NewClient("  ", 0)
	assert.Nil(t, c)
	_, err := c.ConvertHTML(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDisabled)
}
