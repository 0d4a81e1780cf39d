package toolserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirokuma-go/kb/internal/engine"
	"github.com/shirokuma-go/kb/internal/kbtypes"
)

func openTestHandle(t *testing.T) *engine.Handle {
	t.Helper()
	ctx := context.Background()
	h, err := engine.Open(ctx, t.TempDir(), engine.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	_, err = h.CreateType(ctx, "tasks", kbtypes.BaseTasks, "Action items")
	require.NoError(t, err)
	return h
}

func runLines(t *testing.T, srv *Server, lines ...string) []Response {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	require.NoError(t, srv.Serve(context.Background(), in, &out))

	var responses []Response
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.NoError(t, scanner.Err())
	return responses
}

func TestServePing(t *testing.T) {
	srv := New(openTestHandle(t), nil)
	responses := runLines(t, srv, `{"id":"1","operation":"ping"}`)
	require.Len(t, responses, 1)
	assert.True(t, responses[0].Success)

	var ping PingResponse
	require.NoError(t, json.Unmarshal(responses[0].Data, &ping))
	assert.Equal(t, "pong", ping.Message)
}

func TestServeCreateThenGetItem(t *testing.T) {
	srv := New(openTestHandle(t), nil)

	createLine := `{"id":"c1","operation":"create_item","args":{"type":"tasks","title":"Fix login bug"}}`
	responses := runLines(t, srv, createLine)
	require.Len(t, responses, 1)
	require.True(t, responses[0].Success, responses[0].Error)

	var created kbtypes.Item
	require.NoError(t, json.Unmarshal(responses[0].Data, &created))
	assert.Equal(t, "Fix login bug", created.Title)
	assert.NotEmpty(t, created.ID)

	getArgs, err := json.Marshal(GetItemArgs{Type: "tasks", ID: created.ID})
	require.NoError(t, err)
	getLine := `{"id":"g1","operation":"get_item","args":` + string(getArgs) + `}`

	responses = runLines(t, srv, getLine)
	require.Len(t, responses, 1)
	require.True(t, responses[0].Success, responses[0].Error)
	var fetched kbtypes.Item
	require.NoError(t, json.Unmarshal(responses[0].Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestServeMalformedLineReturnsErrorButKeepsGoing(t *testing.T) {
	srv := New(openTestHandle(t), nil)
	responses := runLines(t, srv, "not json", `{"id":"1","operation":"ping"}`)
	require.Len(t, responses, 2)
	assert.False(t, responses[0].Success)
	assert.True(t, responses[1].Success)
}

func TestServeUnknownOperationErrors(t *testing.T) {
	srv := New(openTestHandle(t), nil)
	responses := runLines(t, srv, `{"id":"1","operation":"bogus_op"}`)
	require.Len(t, responses, 1)
	assert.False(t, responses[0].Success)
	assert.Contains(t, responses[0].Error, "unknown operation")
}
