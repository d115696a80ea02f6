package jsonrpc2

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// SyncPeer is the deterministic test-mode variant of Peer: Call writes the
// request frame and then reads the next frame from the same stream, with no
// background reader. It is intended for scripted peers in tests and is not
// safe for concurrent use.
type SyncPeer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	scanner *bufio.Scanner
	nextID  int64
}

// NewSyncPeer builds a SyncPeer over rw.
func NewSyncPeer(rw io.ReadWriter) *SyncPeer {
	scanner := bufio.NewScanner(rw)
	scanner.Buffer(make([]byte, 0, 64*1024), defaultMaxFrameSize)
	return &SyncPeer{enc: json.NewEncoder(rw), scanner: scanner}
}

// Call writes a request and synchronously reads the peer's next frame as its
// response. Ids still increase monotonically from 1.
func (p *SyncPeer) Call(method string, params, result any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	req := &Request{JSONRPC: Version, ID: &id, Method: method, Params: params}
	if err := p.enc.Encode(req); err != nil {
		return fmt.Errorf("jsonrpc2: send %s: %w", method, err)
	}

	msg, err := p.next()
	if err != nil {
		return err
	}
	if msg.Error != nil {
		return &RequestError{Code: msg.Error.Code, Message: msg.Error.Message, Data: msg.Error.Data}
	}
	if result != nil && msg.Result != nil {
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("jsonrpc2: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Notify writes a notification frame and does not read anything back.
func (p *SyncPeer) Notify(method string, params any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(&Request{JSONRPC: Version, Method: method, Params: params})
}

func (p *SyncPeer) next() (*Message, error) {
	for p.scanner.Scan() {
		line := p.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return DecodeFrame(line)
	}
	if err := p.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
