package beacon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Dispatcher sends a payload without waiting for the outcome.
type Dispatcher interface {
	Dispatch(p Payload)
}

// Client posts payloads to a beacon endpoint over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}, logger: logger}
}

// Send posts p and waits for the response.
func (c *Client) Send(ctx context.Context, p Payload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("beacon rejected: %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return nil
}

// Dispatch sends p on its own goroutine, detached from any request.
func (c *Client) Dispatch(p Payload) {
	go func() {
		if err := c.Send(context.Background(), p); err != nil {
			c.logger.Warn("journal beacon failed", zap.Error(err))
		}
	}()
}

// Local hands payloads straight to a Service in process.
type Local struct {
	svc     *Service
	timeout time.Duration
}

func NewLocal(svc *Service, timeout time.Duration) *Local {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Local{svc: svc, timeout: timeout}
}

func (l *Local) Dispatch(p Payload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		_ = l.svc.Save(ctx, p)
	}()
}
