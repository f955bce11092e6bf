package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/wellness-kit/order-intake/internal/models"
)

// Messages used when the remote store fails without a body.
const (
	MsgImportFailed = "Failed to import orders"
	MsgCreateFailed = "Failed to create order: "
)

const maxResponseBytes = 1 << 20

// Remote talks to an external order service over HTTP.
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemote creates a client for the service rooted at baseURL.
func NewRemote(baseURL, token string, timeout time.Duration) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// ImportBatch uploads the payload as the multipart field "file" to /orders/import.
func (r *Remote) ImportBatch(ctx context.Context, req ImportRequest) (*models.ImportResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.Filename))
	hdr.Set("Content-Type", "text/csv")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(req.Payload); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	status, raw, err := r.do(ctx, "/orders/import", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = MsgImportFailed
		}
		return nil, &CollaboratorError{StatusCode: status, Message: msg}
	}

	result := &models.ImportResult{}
	if len(bytes.TrimSpace(raw)) > 0 && json.Valid(raw) {
		result.Raw = json.RawMessage(raw)
		// Services that report a count or batch id get them surfaced.
		if err := json.Unmarshal(raw, result); err != nil {
			slog.Default().Debug("import response not in expected shape",
				"service", "order-store",
				"filename", req.Filename,
				"error", err,
			)
		}
	}
	return result, nil
}

// CreateOrder posts one order as JSON to /orders.
func (r *Remote) CreateOrder(ctx context.Context, order models.Order) (*models.Order, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	status, raw, err := r.do(ctx, "/orders", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &CollaboratorError{StatusCode: status, Message: MsgCreateFailed + strings.TrimSpace(string(raw))}
	}

	created := order
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &created); err != nil {
			created = order
		}
	}
	if created.ID == "" {
		created.ID = order.ID
	}
	return &created, nil
}

func (r *Remote) do(ctx context.Context, path, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}
