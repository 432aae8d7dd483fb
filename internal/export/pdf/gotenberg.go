// Package pdf renders bills to HTML and converts them to PDF with Gotenberg.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const convertPath = "/forms/chromium/convert/html"

var ErrDisabled = errors.New("pdf rendering is not configured")

// Client talks to a Gotenberg instance.
type Client struct {
	http *resty.Client
}

// NewClient returns nil when baseURL is empty; a nil Client reports ErrDisabled.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout),
	}
}

// ConvertHTML posts html as index.html and returns the PDF bytes.
func (c *Client) ConvertHTML(ctx context.Context, html []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrDisabled
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("files", "index.html", bytes.NewReader(html)).
		SetFormData(map[string]string{"printBackground": "true"}).
		Post(convertPath)
	if err != nil {
		return nil, fmt.Errorf("convert html: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("convert html: gotenberg status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// RenderBill renders doc and converts it in one step.
func (c *Client) RenderBill(ctx context.Context, doc BillDocument) ([]byte, error) {
	html, err := RenderBillHTML(doc)
	if err != nil {
		return nil, err
	}
	return c.ConvertHTML(ctx, html)
}
