// Package gremlinws implements the Gremlin Server websocket protocol as a
// cosmosgremlin.Runner. It is the transport used for Azure Cosmos DB Gremlin
// accounts and any TinkerPop compatible server that answers with untyped
// JSON (GraphSON 1.0 style) results.
package gremlinws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	cosmosgremlin "github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin"
	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

const (
	// DefaultMimeType selects untyped JSON results.
	DefaultMimeType = "application/json"

	defaultWriteWait = 10 * time.Second
	maxMessageSize   = 16 * 1024 * 1024
)

// Response status codes defined by the Gremlin Server protocol.
const (
	StatusSuccess        = 200
	StatusNoContent      = 204
	StatusPartialContent = 206
)

// ErrClosed is returned by Submit once the connection is closed or left in
// an unknown state by a cancelled request.
var ErrClosed = errors.New("gremlin connection is closed")

// ResponseError is a non-success status returned by the server.
type ResponseError struct {
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("gremlin server returned status %d: %s", e.Code, e.Message)
}

type request struct {
	RequestID string      `json:"requestId"`
	Op        string      `json:"op"`
	Processor string      `json:"processor"`
	Args      requestArgs `json:"args"`
}

type requestArgs struct {
	Gremlin  string         `json:"gremlin"`
	Bindings map[string]any `json:"bindings,omitempty"`
	Language string         `json:"language"`
}

type response struct {
	RequestID string `json:"requestId"`
	Status    struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Result struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
}

// Option configures a Conn.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	header   http.Header
	dialer   *websocket.Dialer
	mimeType string
}

// WithLogger sets the logger for connection diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHeader adds headers to the websocket handshake.
func WithHeader(header http.Header) Option {
	return func(o *options) { o.header = header }
}

// WithDialer overrides the websocket dialer, for example to configure TLS.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(o *options) { o.dialer = dialer }
}

// WithMimeType overrides the serializer mime type sent with each request.
func WithMimeType(mime string) Option {
	return func(o *options) { o.mimeType = mime }
}

// Conn is a single Gremlin Server websocket connection. Requests are
// serialized: Submit waits for the previous request's final response before
// sending. Conn is safe for concurrent use.
type Conn struct {
	mu       sync.Mutex
	ws       *websocket.Conn
	logger   *zap.Logger
	mimeType string
	broken   error
}

// Dial opens a connection to endpoint, e.g.
// "wss://<account>.gremlin.cosmos.azure.com:443/".
//
// Parameters:
//   - ctx: Bounds the handshake only.
//   - endpoint: The ws:// or wss:// URL of the server.
//   - opts: Optional logger, handshake headers, dialer and mime type.
//
// Returns:
//
//	An open Conn, or an error if the handshake fails.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Conn, error) {
	o := options{
		logger:   zap.NewNop(),
		dialer:   websocket.DefaultDialer,
		mimeType: DefaultMimeType,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ws, resp, err := o.dialer.DialContext(ctx, endpoint, o.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to gremlin server: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	o.logger.Debug("gremlin connection established", zap.String("endpoint", endpoint))
	return &Conn{ws: ws, logger: o.logger, mimeType: o.mimeType}, nil
}

// Submit sends q as an eval request and returns the raw result items of
// every response frame in order. It implements cosmosgremlin.Runner.
//
// Cancelling ctx aborts the request. Because the server may still answer
// it, the connection is then unusable and later calls return ErrClosed.
func (c *Conn) Submit(ctx context.Context, q cosmosgremlin.Statement) ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, c.broken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New()
	frame, err := encodeRequest(c.mimeType, request{
		RequestID: id.String(),
		Op:        "eval",
		Args: requestArgs{
			Gremlin:  q.Text,
			Bindings: q.Bindings,
			Language: "gremlin-groovy",
		},
	})
	if err != nil {
		return nil, err
	}

	guard := &cancelGuard{abort: func() {
		// Unblocks a pending read or write; the error surfaces below.
		c.ws.SetReadDeadline(time.Now())
		c.ws.SetWriteDeadline(time.Now())
	}}
	stop := context.AfterFunc(ctx, guard.fire)
	defer func() {
		stop()
		guard.finish()
	}()

	writeDeadline := time.Now().Add(defaultWriteWait)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(writeDeadline) {
		writeDeadline = deadline
	}
	c.ws.SetWriteDeadline(writeDeadline)
	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetReadDeadline(deadline)
	} else {
		c.ws.SetReadDeadline(time.Time{})
	}

	if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, c.fail(ctx, fmt.Errorf("could not send gremlin request: %w", err))
	}

	items, err := c.readResponses(id.String())
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	c.logger.Debug("gremlin request completed",
		zap.String("request_id", id.String()),
		zap.Int("results", len(items)),
	)
	return items, nil
}

// cancelGuard runs abort when a request's context ends, but never once the
// request has finished. context.AfterFunc's stop does not wait for a callback
// that is already running, so a late callback could otherwise expire the
// deadlines of the next request on the connection.
type cancelGuard struct {
	mu       sync.Mutex
	finished bool
	abort    func()
}

func (g *cancelGuard) fire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.finished {
		g.abort()
	}
}

// finish waits for a running abort and disables later ones.
func (g *cancelGuard) finish() {
	g.mu.Lock()
	g.finished = true
	g.mu.Unlock()
}

// readResponses reads frames until a final status arrives.
func (c *Conn) readResponses(id string) ([]any, error) {
	var items []any
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			return nil, &connError{err: fmt.Errorf("could not read gremlin response: %w", err)}
		}
		var resp response
		if err := json.Unmarshal(message, &resp); err != nil {
			return nil, &connError{err: fmt.Errorf("malformed gremlin response: %w", err)}
		}
		if resp.RequestID != id {
			return nil, &connError{err: fmt.Errorf("response for request %s while waiting for %s", resp.RequestID, id)}
		}

		switch resp.Status.Code {
		case StatusSuccess, StatusPartialContent:
			data, err := decodeData(resp.Result.Data)
			if err != nil {
				err = fmt.Errorf("malformed gremlin result data: %w", err)
				if resp.Status.Code == StatusPartialContent {
					return nil, &connError{err: err}
				}
				return nil, err
			}
			items = append(items, data...)
			if resp.Status.Code == StatusSuccess {
				if items == nil {
					items = []any{}
				}
				return items, nil
			}
		case StatusNoContent:
			if items == nil {
				items = []any{}
			}
			return items, nil
		default:
			return nil, &ResponseError{Code: resp.Status.Code, Message: resp.Status.Message}
		}
	}
}

func decodeData(data json.RawMessage) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return wire.DecodeResults(data)
}

// connError marks failures that leave the socket in an unknown state.
type connError struct {
	err error
}

func (e *connError) Error() string { return e.err.Error() }
func (e *connError) Unwrap() error { return e.err }

// fail decides whether err leaves the connection unusable.
func (c *Conn) fail(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if deadline, ok := ctx.Deadline(); ok && ctxErr == nil && !time.Now().Before(deadline) {
		ctxErr = context.DeadlineExceeded
	}
	if ctxErr != nil {
		c.broken = ErrClosed
		c.logger.Warn("gremlin request cancelled; closing connection", zap.Error(ctxErr))
		c.ws.Close()
		return ctxErr
	}
	var ce *connError
	if errors.As(err, &ce) {
		c.broken = ErrClosed
		c.ws.Close()
		return ce.err
	}
	return err
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil
	}
	c.broken = ErrClosed
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

// encodeRequest renders the binary request frame: one byte holding the mime
// type's length, the mime type, then the JSON request.
func encodeRequest(mimeType string, req request) ([]byte, error) {
	if len(mimeType) == 0 || len(mimeType) > 255 {
		return nil, fmt.Errorf("invalid mime type %q", mimeType)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not encode gremlin request: %w", err)
	}
	frame := make([]byte, 0, 1+len(mimeType)+len(body))
	frame = append(frame, byte(len(mimeType)))
	frame = append(frame, mimeType...)
	return append(frame, body...), nil
}
