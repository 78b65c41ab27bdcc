package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Conn is a Content-Length-framed JSON-RPC 2.0 connection over a pair of
// stdio-like streams, grounded on the corpus's other hand-rolled LSP
// stdio servers: a bufio.Reader scanning header lines up to the blank
// separator, then reading exactly Content-Length bytes of JSON body.
// Writes are serialized with a mutex, so a Conn is safe for concurrent
// writers; Server itself issues every write (responses, diagnostics,
// registerCapability) from its dispatch loop.
type Conn struct {
	r *bufio.Reader

	writeMu sync.Mutex
	w       io.Writer
}

// NewConn wraps r and w as a Content-Length-framed connection.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: bufio.NewReader(r), w: w}
}

// ReadMessage blocks for the next frame on the connection. It returns
// io.EOF when the peer has closed the stream (stdin closed), the normal
// way a client-driven shutdown surfaces if exit never arrives.
func (c *Conn) ReadMessage() (*Message, error) {
	contentLength := -1
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("lsp: malformed Content-Length header %q: %w", value, err)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("lsp: frame missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("lsp: invalid JSON-RPC frame: %w", err)
	}
	return &msg, nil
}

// WriteMessage frames and writes msg, safe for concurrent use.
func (c *Conn) WriteMessage(msg *Message) error {
	msg.JSONRPC = "2.0"
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = c.w.Write(body)
	return err
}

// WriteResult sends a successful response to request id.
func (c *Conn) WriteResult(id interface{}, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.WriteMessage(&Message{ID: id, Result: raw})
}

// WriteError sends an error response to request id.
func (c *Conn) WriteError(id interface{}, code int, message string) error {
	return c.WriteMessage(&Message{ID: id, Error: &RPCError{Code: code, Message: message}})
}

// Notify sends a server-to-client notification (no id, no reply expected).
func (c *Conn) Notify(method string, params interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return c.WriteMessage(&Message{Method: method, Params: raw})
}

// nextRequestID is a monotonically increasing counter for server-issued
// requests (client/registerCapability, client/unregisterCapability),
// distinct from the client's own id space.
type nextRequestID struct {
	mu  sync.Mutex
	cur int
}

func (n *nextRequestID) next() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cur++
	return n.cur
}

// Request sends a server-to-client request and returns its id; the
// dispatcher's read loop is responsible for matching the eventual
// response by id since Conn itself has no correlation table.
func (c *Conn) Request(ids *nextRequestID, method string, params interface{}) (int, error) {
	id := ids.next()
	raw, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	if err := c.WriteMessage(&Message{ID: id, Method: method, Params: raw}); err != nil {
		return 0, err
	}
	return id, nil
}
