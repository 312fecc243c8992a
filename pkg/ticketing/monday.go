// Package ticketing creates work items for submitted intakes on a Monday board.
package ticketing

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"intake/pkg/config"
	"intake/pkg/intake"
	"intake/pkg/logx"
)

// ErrCreateFailed wraps every item creation failure.
var ErrCreateFailed = errors.New("ticket creation failed")

const (
	createItemMutation = `mutation CreateItem($boardId: ID!, $itemName: String!, $columnValues: JSON!) {
  create_item(board_id: $boardId, item_name: $itemName, column_values: $columnValues) { id }
}`
	createUpdateMutation = `mutation CreateUpdate($itemId: ID!, $body: String!) {
  create_update(item_id: $itemId, body: $body) { id }
}`
	maxErrorBody = 500
)

// Result describes the created (or simulated) item.
type Result struct {
	ItemID   string `json:"item_id"`
	BoardID  string `json:"board_id,omitempty"`
	MockMode bool   `json:"mock_mode"`
}

// Client talks to the Monday GraphQL API.
type Client struct {
	apiURL    string
	token     string
	boardID   string
	mockMode  bool
	columnMap map[string]string
	http      *http.Client
	logger    *logx.Logger
}

// NewClient creates a client from configuration. Missing column map entries fall back to
// the defaults.
func NewClient(cfg config.MondayConfig) *Client {
	columns := config.DefaultColumnMap()
	for k, v := range cfg.ColumnMap {
		if strings.TrimSpace(v) != "" {
			columns[k] = v
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = config.DefaultMondayAPIURL
	}
	return &Client{
		apiURL:    apiURL,
		token:     strings.TrimSpace(cfg.APIToken),
		boardID:   strings.TrimSpace(cfg.BoardID),
		mockMode:  cfg.MockMode,
		columnMap: columns,
		http:      &http.Client{Timeout: timeout},
		logger:    logx.NewLogger("monday"),
	}
}

// MockMode reports whether items are simulated.
func (c *Client) MockMode() bool {
	return c.mockMode || c.token == "" || c.boardID == ""
}

// CreateItem creates the board item and attaches the summary as an update.
func (c *Client) CreateItem(ctx context.Context, profile *intake.Profile, payload *intake.Payload, summary string) (Result, error) {
	if c.MockMode() {
		id, err := mockID()
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrCreateFailed, err)
		}
		c.logger.Info("mock mode: simulated item %s", id)
		return Result{ItemID: id, BoardID: c.boardID, MockMode: true}, nil
	}

	columnValues, err := json.Marshal(c.columnValues(profile, payload, summary))
	if err != nil {
		return Result{}, fmt.Errorf("%w: failed to encode column values: %w", ErrCreateFailed, err)
	}
	itemName := payload.ProjectTitle
	if strings.TrimSpace(itemName) == "" {
		itemName = "Untitled Project"
	}

	body, err := c.execute(ctx, c.token, createItemMutation, map[string]any{
		"boardId":      c.boardID,
		"itemName":     itemName,
		"columnValues": string(columnValues),
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	if msg := firstError(body); msg != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrCreateFailed, msg)
	}
	itemID := gjson.GetBytes(body, "data.create_item.id").String()
	if itemID == "" {
		return Result{}, fmt.Errorf("%w: Monday create_item returned no id: %s", ErrCreateFailed, truncate(string(body)))
	}

	if _, err := c.execute(ctx, c.token, createUpdateMutation, map[string]any{"itemId": itemID, "body": summary}); err != nil {
		return Result{}, fmt.Errorf("%w: item %s created but update failed: %w", ErrCreateFailed, itemID, err)
	}

	c.logger.Info("created Monday item %s on board %s", itemID, c.boardID)
	return Result{ItemID: itemID, BoardID: c.boardID, MockMode: false}, nil
}

func (c *Client) columnValues(profile *intake.Profile, payload *intake.Payload, summary string) map[string]any {
	clientName, clientCode := "", ""
	if profile != nil {
		clientName, clientCode = profile.ClientName, profile.ClientCode
	}
	return map[string]any{
		c.columnMap["status"]:       map[string]string{"label": "New"},
		c.columnMap["client"]:       clientName,
		c.columnMap["client_code"]:  clientCode,
		c.columnMap["service_type"]: payload.ServiceType,
		c.columnMap["audience"]:     payload.TargetAudience,
		c.columnMap["due_date"]:     map[string]string{"date": payload.DueDate},
		c.columnMap["urgency"]:      payload.TimeSensitivity,
		c.columnMap["approver"]:     payload.Approver,
		c.columnMap["summary"]:      summary,
		c.columnMap["links"]:        strings.Join(payload.References, "\n"),
	}
}

// execute posts one GraphQL operation and returns the raw response body. Non-2xx
// responses become "HTTP <status>: <body>" errors.
func (c *Client) execute(ctx context.Context, token, query string, variables map[string]any) ([]byte, error) {
	reqBody, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("POST %s", c.apiURL)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body))}
	}
	return body, nil
}

// HTTPError is a non-2xx API response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func firstError(body []byte) string {
	errs := gjson.GetBytes(body, "errors")
	if !errs.IsArray() || len(errs.Array()) == 0 {
		return ""
	}
	if msg := errs.Get("0.message").String(); msg != "" {
		return msg
	}
	return "Unknown Monday API error"
}

func mockID() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate mock id: %w", err)
	}
	return "mock-" + hex.EncodeToString(buf), nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
