package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amilabs/orchestrator/jsonrpc2"
)

type duplex struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (d *duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.w.Write(p) }

func (d *duplex) Close() error {
	_ = d.w.Close()
	return d.r.Close()
}

func newDuplexPair() (*duplex, *duplex) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &duplex{r: ar, w: aw}, &duplex{r: br, w: bw}
}

// scriptedAgent plays the agent side of the conversation.
type scriptedAgent struct {
	t       *testing.T
	stream  *duplex
	scanner *bufio.Scanner
	enc     *json.Encoder
}

func newScriptedAgent(t *testing.T, stream *duplex) *scriptedAgent {
	t.Helper()
	return &scriptedAgent{t: t, stream: stream, scanner: bufio.NewScanner(stream), enc: json.NewEncoder(stream)}
}

func (a *scriptedAgent) readFrame() *jsonrpc2.Message {
	a.t.Helper()
	require.True(a.t, a.scanner.Scan(), "expected a frame from the client")
	msg, err := jsonrpc2.DecodeFrame(a.scanner.Bytes())
	require.NoError(a.t, err)
	return msg
}

func (a *scriptedAgent) reply(id int64, result any) {
	a.t.Helper()
	data, err := json.Marshal(result)
	require.NoError(a.t, err)
	require.NoError(a.t, a.enc.Encode(&jsonrpc2.Response{JSONRPC: jsonrpc2.Version, ID: &id, Result: data}))
}

func TestClientInitialize(t *testing.T) {
	near, far := newDuplexPair()
	client := NewClient("agent", nil, WithStream(near))
	require.NoError(t, client.Start())
	defer client.Stop()

	go func() {
		agent := newScriptedAgent(t, far)
		msg := agent.readFrame()
		assert.Equal(t, "initialize", msg.Method)

		var params InitializeParams
		require.NoError(t, json.Unmarshal(msg.Params, &params))
		assert.Equal(t, ProtocolVersion, params.ProtocolVersion)

		agent.reply(*msg.ID, InitializeResponse{ProtocolVersion: params.ProtocolVersion, IsAuthenticated: true})
	}()

	resp, err := client.Initialize(context.Background(), InitializeParams{ProtocolVersion: ProtocolVersion})
	require.NoError(t, err)
	assert.True(t, resp.IsAuthenticated)
}

func TestClientSendUserMessage(t *testing.T) {
	near, far := newDuplexPair()
	client := NewClient("agent", nil, WithStream(near))
	require.NoError(t, client.Start())
	defer client.Stop()

	go func() {
		agent := newScriptedAgent(t, far)
		msg := agent.readFrame()
		assert.Equal(t, "sendUserMessage", msg.Method)

		var params SendUserMessageParams
		require.NoError(t, json.Unmarshal(msg.Params, &params))
		require.Len(t, params.Chunks, 2)
		assert.Equal(t, "look at", params.Chunks[0].Text)
		assert.Equal(t, "src/main.go", params.Chunks[1].Path)

		agent.reply(*msg.ID, nil)
	}()

	err := client.SendUserMessage(context.Background(), SendUserMessageParams{
		Chunks: []MessageChunk{{Text: "look at"}, {Path: "src/main.go"}},
	})
	require.NoError(t, err)
}

func TestClientCancelSendMessage(t *testing.T) {
	near, far := newDuplexPair()
	client := NewClient("agent", nil, WithStream(near))
	require.NoError(t, client.Start())
	defer client.Stop()

	go func() {
		agent := newScriptedAgent(t, far)
		msg := agent.readFrame()
		assert.Equal(t, "cancelSendMessage", msg.Method)
		agent.reply(*msg.ID, nil)
	}()

	require.NoError(t, client.CancelSendMessage(context.Background()))
}

func TestClientDispatchesAgentRequestsToDelegate(t *testing.T) {
	delegate := jsonrpc2.HandlerFunc(func(method string, params json.RawMessage) (any, error) {
		switch method {
		case "requestUserInput":
			return map[string]string{"input": "yes"}, nil
		default:
			return nil, jsonrpc2.ErrMethodNotFound
		}
	})

	near, far := newDuplexPair()
	client := NewClient("agent", delegate, WithStream(near))
	require.NoError(t, client.Start())
	defer client.Stop()

	agent := newScriptedAgent(t, far)

	id := int64(7)
	require.NoError(t, agent.enc.Encode(&jsonrpc2.Request{JSONRPC: jsonrpc2.Version, ID: &id, Method: "requestUserInput"}))
	msg := agent.readFrame()
	assert.Equal(t, id, *msg.ID)
	assert.JSONEq(t, `{"input":"yes"}`, string(msg.Result))

	// Unknown delegate methods come back as method-not-found.
	id = 8
	require.NoError(t, agent.enc.Encode(&jsonrpc2.Request{JSONRPC: jsonrpc2.Version, ID: &id, Method: "fetchSecrets"}))
	msg = agent.readFrame()
	require.NotNil(t, msg.Error)
	assert.Equal(t, jsonrpc2.CodeMethodNotFound, msg.Error.Code)
}

func TestClientRequestErrorSurfaced(t *testing.T) {
	near, far := newDuplexPair()
	client := NewClient("agent", nil, WithStream(near))
	require.NoError(t, client.Start())
	defer client.Stop()

	go func() {
		agent := newScriptedAgent(t, far)
		msg := agent.readFrame()
		id := *msg.ID
		require.NoError(t, agent.enc.Encode(&jsonrpc2.Response{
			JSONRPC: jsonrpc2.Version,
			ID:      &id,
			Error:   &jsonrpc2.ErrorObject{Code: -32000, Message: "agent busy"},
		}))
	}()

	err := client.SendUserMessage(context.Background(), SendUserMessageParams{})
	var reqErr *jsonrpc2.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, -32000, reqErr.Code)
	assert.Equal(t, "agent busy", reqErr.Message)
}

func TestClientTimeout(t *testing.T) {
	near, far := newDuplexPair()
	client := NewClient("agent", nil, WithStream(near), WithCallTimeout(100*time.Millisecond))
	require.NoError(t, client.Start())
	defer client.Stop()

	go func() {
		agent := newScriptedAgent(t, far)
		agent.readFrame() // swallow, never answer
	}()

	err := client.CancelSendMessage(context.Background())
	var timeoutErr *jsonrpc2.TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestClientCallBeforeStart(t *testing.T) {
	client := NewClient("agent", nil)
	err := client.CancelSendMessage(context.Background())
	assert.Error(t, err)
}

func TestClientStopFailsInFlightCalls(t *testing.T) {
	near, far := newDuplexPair()
	client := NewClient("agent", nil, WithStream(near))
	require.NoError(t, client.Start())

	go func() {
		agent := newScriptedAgent(t, far)
		agent.readFrame() // never answer
	}()

	errs := make(chan error, 1)
	go func() {
		errs <- client.SendUserMessage(context.Background(), SendUserMessageParams{})
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Stop())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, jsonrpc2.ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("in-flight call was not failed by Stop")
	}
}
