// Package client is a Go client for the chat HTTP API, including a polling
// loop that keeps a local copy of a room's messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/pliu/pairchat/internal/models"
)

const maxErrorBody = 16 * 1024

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ForceAttemptHTTP2:     true,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
			},
		},
		log: log.With().Str("component", "client").Logger(),
	}
}

func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	c.log.Trace().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: gjson.GetBytes(data, "message").String()}
	}
	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	var resp struct {
		User  *models.User `json:"user"`
		Token string       `json:"token"`
	}
	_, err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return resp.User, nil
}

// CreateRoom opens (or finds) the room with username. created reports whether
// the server made a new room.
func (c *Client) CreateRoom(ctx context.Context, username string) (string, bool, error) {
	var resp struct {
		RoomID string `json:"roomId"`
	}
	status, err := c.do(ctx, http.MethodPost, "/chatrooms", map[string]string{"username": username}, &resp)
	if err != nil {
		return "", false, err
	}
	return resp.RoomID, status == http.StatusCreated, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]models.RoomSummary, error) {
	var rooms []models.RoomSummary
	_, err := c.do(ctx, http.MethodGet, "/chatrooms", nil, &rooms)
	return rooms, err
}

// SendMessage posts content to roomID. A non-empty clientID lets the call be
// retried safely.
func (c *Client) SendMessage(ctx context.Context, roomID string, content models.MessageContent, clientID string) (*models.Message, error) {
	body := struct {
		RoomID string `json:"roomId"`
		models.MessageContent
		ClientMessageID string `json:"clientMessageId,omitempty"`
	}{roomID, content, clientID}
	var msg models.Message
	if _, err := c.do(ctx, http.MethodPost, "/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages fetches the messages of roomID with seq greater than afterSeq.
func (c *Client) Messages(ctx context.Context, roomID string, afterSeq int64) ([]models.Message, error) {
	path := "/messages/" + url.PathEscape(roomID) + "/messages"
	if afterSeq > 0 {
		path += "?after=" + strconv.FormatInt(afterSeq, 10)
	}
	var messages []models.Message
	_, err := c.do(ctx, http.MethodGet, path, nil, &messages)
	return messages, err
}
