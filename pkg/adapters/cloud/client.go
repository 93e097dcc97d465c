package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/notesync/pkg/core"
)

// TokenSource supplies the bearer token of the current session. An empty
// token means there is no session.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client calls the remote procedures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, tokens TokenSource, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// Call invokes procedure with body and decodes the reply into out. Errors
// are classified with core error kinds.
func (c *Client) Call(ctx context.Context, procedure string, body, out any) error {
	token := c.tokens.Token()
	if token == "" {
		return core.Wrap(core.ErrAuth, procedure, fmt.Errorf("no session"))
	}
	if body == nil {
		body = struct{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return core.Invalid(procedure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+procedure, bytes.NewReader(payload))
	if err != nil {
		return core.Wrap(core.ErrNetwork, procedure, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Wrap(core.ErrNetwork, procedure, err)
	}
	data, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return core.Wrap(core.ErrNetwork, procedure, readErr)
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return core.Wrap(core.ErrNetwork, procedure, fmt.Errorf("decode reply: %w", err))
		}
		return nil
	}

	var errPayload ErrorResponse
	_ = json.Unmarshal(data, &errPayload)
	httpErr := &HTTPError{
		Procedure:  procedure,
		StatusCode: resp.StatusCode,
		Code:       errPayload.Code,
		Message:    errPayload.Message,
	}
	c.logger.Debug("rpc failed", "procedure", procedure, "status", resp.StatusCode, "code", errPayload.Code)
	return &core.Error{Kind: KindForStatus(resp.StatusCode), Op: procedure, Err: httpErr}
}
