package ticketing

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	verifyWithBoardQuery = `query VerifyMonday($boardIds: [ID!]) {
  me { id name }
  boards(ids: $boardIds) { id name }
}`
	verifyQuery = `query VerifyMonday {
  me { id name }
}`
)

// VerifyRequest overrides the configured credentials for one check.
type VerifyRequest struct {
	APIToken  string `json:"api_token,omitempty"`
	BoardID   string `json:"board_id,omitempty"`
	Query     string `json:"query,omitempty"`
	ForceLive bool   `json:"force_live"`
}

// VerifyResult reports what the API said about the credentials.
type VerifyResult struct {
	OK          bool   `json:"ok"`
	MockMode    bool   `json:"mock_mode"`
	APIURL      string `json:"api_url"`
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`
	BoardID     string `json:"board_id,omitempty"`
	BoardName   string `json:"board_name,omitempty"`
	BoardFound  *bool  `json:"board_found"`
	Error       string `json:"error,omitempty"`
}

// VerifyCredentials checks a token (and optionally a board) against the live API.
// Failures are reported in the result, never as an error.
func (c *Client) VerifyCredentials(ctx context.Context, req VerifyRequest) VerifyResult {
	token := strings.TrimSpace(req.APIToken)
	if token == "" {
		token = c.token
	}
	boardID := strings.TrimSpace(req.BoardID)
	if boardID == "" {
		boardID = c.boardID
	}
	result := VerifyResult{APIURL: c.apiURL, BoardID: boardID}

	if !req.ForceLive && req.APIToken == "" && c.mockMode {
		result.MockMode = true
		result.Error = "MONDAY_MOCK_MODE is enabled. Disable it or set force_live=true to test the real API."
		return result
	}
	if token == "" {
		result.Error = "Monday API token is missing."
		return result
	}

	query, variables := verifyQuery, map[string]any{}
	switch {
	case req.Query != "":
		query = req.Query
	case boardID != "":
		query = verifyWithBoardQuery
		variables["boardIds"] = []string{boardID}
	}

	body, err := c.execute(ctx, token, query, variables)
	if err != nil {
		result.Error = err.Error()
		result.BoardFound = boardFlag(boardID, false)
		return result
	}
	if msg := firstError(body); msg != "" {
		result.Error = msg
		result.BoardFound = boardFlag(boardID, false)
		return result
	}

	data := gjson.GetBytes(body, "data")
	result.OK = true
	result.AccountID = data.Get("me.id").String()
	result.AccountName = data.Get("me.name").String()
	if boardID != "" {
		found := false
		data.Get("boards").ForEach(func(_, board gjson.Result) bool {
			if board.Get("id").String() == boardID {
				result.BoardName = board.Get("name").String()
				found = true
				return false
			}
			return true
		})
		result.BoardFound = &found
	}
	return result
}

func boardFlag(boardID string, v bool) *bool {
	if boardID == "" {
		return nil
	}
	return &v
}
