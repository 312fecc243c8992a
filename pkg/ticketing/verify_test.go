package ticketing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/pkg/config"
)

func TestVerifyMockAndMissingToken(t *testing.T) {
	mock := NewClient(config.MondayConfig{MockMode: true, BoardID: "42"})
	res := mock.VerifyCredentials(context.Background(), VerifyRequest{})
	assert.False(t, res.OK)
	assert.True(t, res.MockMode)
	assert.Equal(t, "MONDAY_MOCK_MODE is enabled. Disable it or set force_live=true to test the real API.", res.Error)
	assert.Equal(t, config.DefaultMondayAPIURL, res.APIURL)

	res = mock.VerifyCredentials(context.Background(), VerifyRequest{ForceLive: true})
	assert.Equal(t, "Monday API token is missing.", res.Error)
	assert.False(t, res.MockMode)
}

func TestVerifyBoardLookup(t *testing.T) {
	fake := &fakeMonday{respond: func(graphqlCall) (int, string) {
		return 200, `{"data":{"me":{"id":7,"name":"Ops"},"boards":[{"id":"41","name":"Old"},{"id":"42","name":"Intake"}]}}`
	}}
	c := newLiveClient(t, fake)

	res := c.VerifyCredentials(context.Background(), VerifyRequest{})
	assert.True(t, res.OK)
	assert.Equal(t, "7", res.AccountID)
	assert.Equal(t, "Ops", res.AccountName)
	assert.Equal(t, "Intake", res.BoardName)
	require.NotNil(t, res.BoardFound)
	assert.True(t, *res.BoardFound)
	assert.Equal(t, []any{"42"}, fake.calls[0].Variables["boardIds"])

	res = c.VerifyCredentials(context.Background(), VerifyRequest{BoardID: "99", APIToken: "other"})
	require.NotNil(t, res.BoardFound)
	assert.False(t, *res.BoardFound)
	assert.Equal(t, "other", fake.calls[1].Auth)
}

func TestVerifyErrors(t *testing.T) {
	c := newLiveClient(t, &fakeMonday{respond: func(graphqlCall) (int, string) {
		return 401, "Not Authenticated"
	}})
	res := c.VerifyCredentials(context.Background(), VerifyRequest{})
	assert.False(t, res.OK)
	assert.Equal(t, "HTTP 401: Not Authenticated", res.Error)
	require.NotNil(t, res.BoardFound)
	assert.False(t, *res.BoardFound)

	c = newLiveClient(t, &fakeMonday{respond: func(graphqlCall) (int, string) {
		return 200, `{"errors":[{"message":"Parse error on \"}\""}]}`
	}})
	res = c.VerifyCredentials(context.Background(), VerifyRequest{Query: "query { me { id } "})
	assert.Contains(t, res.Error, "Parse error")
}
