// Package acp implements the client side of the Agent-Coordinator Protocol:
// a bidirectional JSON-RPC 2.0 conversation with an external agent process
// over its stdio. The client sends initialize/sendUserMessage/
// cancelSendMessage; the agent calls back into an embedder-supplied
// delegate.
package acp

// InitializeParams opens the conversation with the agent.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// InitializeResponse reports the agent's capabilities.
type InitializeResponse struct {
	ProtocolVersion string `json:"protocolVersion"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// MessageChunk is one piece of a user message: inline text or a path
// reference. Exactly one field is set.
type MessageChunk struct {
	Text string `json:"text,omitempty"`
	Path string `json:"path,omitempty"`
}

// SendUserMessageParams carries a user message to the agent.
type SendUserMessageParams struct {
	Chunks []MessageChunk `json:"chunks"`
}
