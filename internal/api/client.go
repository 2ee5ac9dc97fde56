// Package api implements the workflow's backend collaborators over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"scanorder/internal/config"
	"scanorder/internal/domain"
	"scanorder/internal/port"
	"scanorder/internal/stream"
)

// ResponseError is a non-2xx reply from the backend.
type ResponseError = domain.ResponseError

// Client talks to the extraction backend. It implements port.DocumentUploader,
// port.EventSource and port.OrderCommitter.
type Client struct {
	baseURL string
	client  *http.Client
	// stream has no overall timeout; event streams stay open until a terminal event.
	stream *http.Client
}

var (
	_ port.DocumentUploader = (*Client)(nil)
	_ port.EventSource      = (*Client)(nil)
	_ port.OrderCommitter   = (*Client)(nil)
)

// NewClient creates a Client from the backend config.
func NewClient(cfg *config.BackendConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout()},
		stream:  &http.Client{},
	}
}

// NewClientWithHTTP creates a Client that sends every request through hc (for testing).
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
		stream:  hc,
	}
}

// UploadDocument posts file as multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, file port.UploadFile) (domain.DocumentID, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("creating multipart part: %w", err)
	}
	if file.Body != nil {
		if _, err := io.Copy(part, file.Body); err != nil {
			return "", fmt.Errorf("reading upload body: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/documents"), &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		DocumentID domain.DocumentID `json:"document_id"`
	}
	status, err := c.doJSON(req, &out)
	if err != nil {
		return "", err
	}
	if out.DocumentID == "" {
		return "", &domain.MalformedResponseError{StatusCode: status, Reason: "response carried no document_id"}
	}
	return out.DocumentID, nil
}

// Subscribe opens the document's event stream.
func (c *Client) Subscribe(ctx context.Context, id domain.DocumentID) (port.EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/documents/"+url.PathEscape(id.String())+"/events"), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newResponseError(resp.StatusCode, body)
	}
	return stream.NewSSEStream(resp.Body), nil
}

// CommitDraft saves payload as the order for document id.
func (c *Client) CommitDraft(ctx context.Context, id domain.DocumentID, payload *domain.InvoicePayload) (domain.OrderID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url("/api/documents/"+url.PathEscape(id.String())+"/save"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		SalesOrderID domain.OrderID `json:"sales_order_id"`
	}
	status, err := c.doJSON(req, &out)
	if err != nil {
		return "", err
	}
	if out.SalesOrderID == "" {
		return "", &domain.MalformedResponseError{StatusCode: status, Reason: "response carried no sales_order_id"}
	}
	return out.SalesOrderID, nil
}

// GetDocument fetches the backend's current record of a document.
func (c *Client) GetDocument(ctx context.Context, id domain.DocumentID) (*domain.DocumentStatusView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/documents/"+url.PathEscape(id.String())), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	var out domain.DocumentStatusView
	if _, err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrders returns the most recent orders, newest first. limit <= 0 uses the backend default.
func (c *Client) ListOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	u := c.url("/api/orders")
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	var out struct {
		Orders []domain.OrderSummary `json:"orders"`
	}
	if _, err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// GetOrder returns an order header with its detail lines.
func (c *Client) GetOrder(ctx context.Context, id domain.OrderID) (*domain.OrderDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/orders/"+url.PathEscape(id.String())), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	var out domain.OrderDetail
	if _, err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// doJSON sends req and decodes a 2xx JSON body into out, returning the status
// code. Non-2xx replies become *ResponseError and undecodable 2xx bodies
// *domain.MalformedResponseError; transport failures are returned wrapped.
func (c *Client) doJSON(req *http.Request, out interface{}) (int, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, newResponseError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, &domain.MalformedResponseError{StatusCode: resp.StatusCode, Reason: "response body is not valid JSON"}
	}
	return resp.StatusCode, nil
}

func newResponseError(status int, body []byte) *ResponseError {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &e)
	return &ResponseError{StatusCode: status, Message: strings.TrimSpace(e.Error)}
}
