// Package fcm is an HTTP client for an FCM-style push gateway that accepts
// {"message": {"token": ..., "data": {...}}} and answers with the name of the
// queued message.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/pliu/pairchat/internal/notify"
)

var (
	ErrUnauthorized       = errors.New("push gateway rejected credentials")
	ErrUnregistered       = errors.New("push token is not registered")
	ErrUnexpectedResponse = errors.New("unexpected response from push gateway")
)

const maxResponseBody = 64 * 1024

type Client struct {
	log       zerolog.Logger
	url       string
	serverKey string
	http      *http.Client
}

var _ notify.PushGateway = (*Client)(nil)

func NewClient(log zerolog.Logger, url, serverKey string, timeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &Client{
		log:       log.With().Str("component", "fcm").Logger(),
		url:       url,
		serverKey: serverKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

type request struct {
	Message notify.Payload `json:"message"`
}

func (c *Client) Send(ctx context.Context, payload notify.Payload) error {
	data, err := json.Marshal(request{Message: payload})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.serverKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serverKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Trace().Err(err).Str("url", c.url).Msg("Push request error")
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return err
	}
	c.log.Trace().Str("url", c.url).Str("status", resp.Status).Msg("Push request")

	return c.handleResponse(resp.StatusCode, body)
}

func (c *Client) handleResponse(status int, body []byte) error {
	errStatus := gjson.GetBytes(body, "error.status").String()
	errMessage := gjson.GetBytes(body, "error.message").String()

	switch {
	case status >= 200 && status < 300:
		c.log.Debug().Str("name", gjson.GetBytes(body, "name").String()).Msg("Push accepted by gateway")
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound || errStatus == "UNREGISTERED" || errStatus == "NOT_FOUND":
		return ErrUnregistered
	default:
		if errMessage != "" {
			return fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, status, errMessage)
		}
		return fmt.Errorf("%w: status %d", ErrUnexpectedResponse, status)
	}
}
