package google

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"forum/internal/log"
	"forum/internal/sheets"
)

// Client reads member rows through the Sheets API.
type Client struct {
	auth       *Authenticator
	httpClient *http.Client
	endpoint   string
	logger     *log.Logger
}

var _ sheets.RowReader = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithEndpoint points the client at another API root.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient replaces the pooled base transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(auth *Authenticator, logger *log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		auth:       auth,
		httpClient: newHTTPClientWithPooling(),
		logger:     logger.WithComponent(log.ComponentSheets),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Google APIs
// with connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) service(ctx context.Context) (*gsheet.Service, error) {
	if c.auth == nil {
		return nil, sheets.ErrNotConfigured
	}
	ts, err := c.auth.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	authed := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), ts)

	opts := []goption.ClientOption{goption.WithHTTPClient(authed)}
	if c.endpoint != "" {
		opts = append(opts, goption.WithEndpoint(c.endpoint))
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// ReadRows reads rng from the spreadsheet with unformatted values so that
// numeric cells arrive as numbers rather than locale-formatted text.
func (c *Client) ReadRows(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		c.logger.ErrorContext(ctx, "Sheets read failed",
			log.FieldSpreadsheetID, spreadsheetID,
			log.FieldRange, rng,
			log.FieldError, err)
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	rows := toRows(resp.Values)
	c.logger.InfoContext(ctx, "Sheets range read",
		log.FieldSpreadsheetID, spreadsheetID,
		log.FieldRange, rng,
		"rows", len(rows),
		log.FieldDuration, time.Since(start).Milliseconds())
	return rows, nil
}
