// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package drafts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rodada/rodada/internal/breaker"
	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/models"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client is the events REST API backend.
//
//	POST {base}/api/v1/drafts              -> {"id": 42}
//	PUT  {base}/api/v1/drafts/{id}
//	POST {base}/api/v1/drafts/{id}/submit  -> SubmittedEvent
//	POST {base}/api/v1/events              -> SubmittedEvent
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *breaker.Breaker
}

// NewClient creates a REST client. A nil httpClient uses cfg.Timeout.
func NewClient(cfg config.DraftsConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		http:    httpClient,
		breaker: breaker.New("events-backend", breaker.Settings{
			// 4xx answers mean the backend is healthy and said no.
			IsSuccessful: func(err error) bool {
				var se *ServerError
				return err == nil || (errors.As(err, &se) && !se.Temporary())
			},
		}),
	}
}

type draftRequest struct {
	Owner string              `json:"owner"`
	Draft models.FormSnapshot `json:"draft"`
}

type createResponse struct {
	ID models.DraftID `json:"id"`
}

// CreateDraft implements Store.
func (c *Client) CreateDraft(ctx context.Context, owner string, payload models.FormSnapshot) (models.DraftID, error) {
	var out createResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/drafts", draftRequest{owner, payload}, &out); err != nil {
		return 0, err
	}
	if out.ID <= 0 {
		return 0, fmt.Errorf("events backend returned no draft id")
	}
	return out.ID, nil
}

// UpdateDraft implements Store.
func (c *Client) UpdateDraft(ctx context.Context, owner string, id models.DraftID, payload models.FormSnapshot) error {
	return c.call(ctx, http.MethodPut, "/api/v1/drafts/"+id.String(), draftRequest{owner, payload}, nil)
}

// Finalize implements Store.
func (c *Client) Finalize(ctx context.Context, owner string, id *models.DraftID, payload models.FormSnapshot) (models.SubmittedEvent, error) {
	path := "/api/v1/events"
	if id != nil {
		path = "/api/v1/drafts/" + id.String() + "/submit"
	}
	var out models.SubmittedEvent
	if err := c.call(ctx, http.MethodPost, path, draftRequest{owner, payload}, &out); err != nil {
		return models.SubmittedEvent{}, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	_, err := breaker.Execute(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.do(ctx, method, path, body, out)
	})
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("method", method).Str("path", path).Msg("Events backend call failed")
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach events backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeServerError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode events backend response: %w", err)
	}
	return nil
}

// decodeServerError extracts the user facing message from either
// {"message": "..."} or {"error": {"message": "..."}}. A plain string
// "error" field is accepted too.
func decodeServerError(resp *http.Response) *ServerError {
	se := &ServerError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		se.Message = body.Message
		if se.Message == "" && len(body.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			var plain string
			switch {
			case json.Unmarshal(body.Error, &nested) == nil && nested.Message != "":
				se.Message = nested.Message
			case json.Unmarshal(body.Error, &plain) == nil:
				se.Message = plain
			}
		}
	}
	if se.Message == "" {
		se.Message = fmt.Sprintf("events backend returned status %d", resp.StatusCode)
	}
	return se
}
