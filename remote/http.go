/*
Package remote implements the HTTP client for the system of record.

PURPOSE:
  Implements mutation.Remote over the JSON API the mirror server in
  api/ exposes. Protocol:

    POST   /api/{collection}        create -> {id, ...serverFields}
    PUT    /api/{collection}/{id}   update -> {...serverFields}
    DELETE /api/{collection}/{id}   delete -> {id}
    GET    /api/{collection}        list

  Every call carries a bearer credential and a JSON payload. Responses
  use the envelope {status, data, error, fields}; a non-2xx response or
  a status:false payload is a remote rejection. No usable response at
  all (connection refused, timeout) is a transport failure.

ERROR MAPPING:
  Rejections become *billing.RemoteError with the server's message and
  per-field errors verbatim. Transport failures become
  *billing.TransportError with a generic retryable message; the cause
  stays attached for logs.
*/
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/billing-engine/billing"
)

// Client talks to the system of record over HTTP.
type Client struct {
	base  string
	token string
	http  *http.Client
	log   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (custom transport,
// test doubles).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a logger for request tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the given base URL. The bearer token
// comes from the external session collaborator.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		base:  baseURL,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Create(ctx context.Context, col billing.Collection, payload billing.Entity) (billing.ServerFields, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/%s", col), payload)
	if err != nil {
		return nil, err
	}
	return decodeFields(data)
}

func (c *Client) Update(ctx context.Context, col billing.Collection, id string, payload billing.Entity) (billing.ServerFields, error) {
	data, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/%s/%s", col, id), payload)
	if err != nil {
		return nil, err
	}
	return decodeFields(data)
}

func (c *Client) Delete(ctx context.Context, col billing.Collection, id string) (billing.ServerFields, error) {
	data, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/%s/%s", col, id), nil)
	if err != nil {
		return nil, err
	}
	return decodeFields(data)
}

func (c *Client) List(ctx context.Context, col billing.Collection) ([]billing.Entity, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/%s", col), nil)
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &billing.TransportError{Op: "decode list " + string(col), Err: err}
	}
	entities := make([]billing.Entity, 0, len(raws))
	for _, raw := range raws {
		e, err := decodeEntity(col, raw)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// envelope is the server's uniform response shape.
type envelope struct {
	Status bool              `json:"status"`
	Data   json.RawMessage   `json:"data,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	op := method + " " + path

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, &billing.TransportError{Op: op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return nil, &billing.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Str("op", op).Err(err).Msg("remote call failed")
		return nil, &billing.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("remote call")

	// Any non-2xx is a rejection, even when the body is not the
	// envelope (a proxy's HTML error page): the server did answer.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !env.Status) {
		return nil, &billing.RemoteError{
			StatusCode:  resp.StatusCode,
			Message:     env.Error,
			FieldErrors: env.Fields,
		}
	}
	if decodeErr != nil {
		return nil, &billing.TransportError{Op: op, Err: decodeErr}
	}
	return env.Data, nil
}

func decodeFields(data json.RawMessage) (billing.ServerFields, error) {
	if len(data) == 0 {
		return billing.ServerFields{}, nil
	}
	var fields billing.ServerFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &billing.TransportError{Op: "decode response", Err: err}
	}
	return fields, nil
}

func decodeEntity(col billing.Collection, raw json.RawMessage) (billing.Entity, error) {
	var e billing.Entity
	switch col {
	case billing.CollectionInvoices:
		e = &billing.Invoice{}
	case billing.CollectionQuotations:
		e = &billing.Quotation{}
	case billing.CollectionPayments:
		e = &billing.Payment{}
	case billing.CollectionNotes:
		e = &billing.NoteItem{}
	case billing.CollectionAttachments:
		e = &billing.AttachmentFile{}
	default:
		return nil, &billing.ValidationError{Field: "collection", Message: "unknown collection " + string(col)}
	}
	if err := json.Unmarshal(raw, e); err != nil {
		return nil, &billing.TransportError{Op: "decode " + string(col), Err: err}
	}
	return e, nil
}
