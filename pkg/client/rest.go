package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type Config struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// REST talks to the HTTP surface. Idempotent calls retry transport errors
// and 5xx replies with exponential backoff; sends are tried once.
type REST struct {
	http *http.Client
	conf Config
}

func NewREST(conf Config) *REST {
	if conf.Timeout <= 0 {
		conf.Timeout = 10 * time.Second
	}
	if conf.RetryMaxElapsed <= 0 {
		conf.RetryMaxElapsed = 15 * time.Second
	}
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	return &REST{http: &http.Client{Transport: tr, Timeout: conf.Timeout}, conf: conf}
}

func (c *REST) Conversations(ctx context.Context) ([]*domain.Summary, error) {
	var out []*domain.Summary
	err := c.do(ctx, http.MethodGet, "/api/v1/messages/users", nil, true, &out)
	return out, err
}

func (c *REST) History(ctx context.Context, counterpartID string) ([]*domain.Message, error) {
	var out []*domain.Message
	err := c.do(ctx, http.MethodGet, "/api/v1/messages/"+url.PathEscape(counterpartID), nil, true, &out)
	return out, err
}

func (c *REST) Send(ctx context.Context, counterpartID string, content domain.Content) (*domain.Message, error) {
	var out domain.Message
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages/send/"+url.PathEscape(counterpartID), content, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *REST) MarkRead(ctx context.Context, counterpartID string) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/messages/mark-as-read/"+url.PathEscape(counterpartID), nil, true, nil)
}

func (c *REST) do(ctx context.Context, method, path string, body any, retry bool, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	var env envelope
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.conf.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.conf.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.conf.Token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		env = envelope{}
		_ = json.Unmarshal(raw, &env)
		if resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode, Message: env.Message}
			if resp.StatusCode >= 500 {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		return nil
	}

	var err error
	if retry {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = c.conf.RetryMaxElapsed
		err = backoff.Retry(operation, backoff.WithContext(b, ctx))
	} else {
		err = operation()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}
	if err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
