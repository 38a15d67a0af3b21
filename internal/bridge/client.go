package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// maxLine bounds a single response line; screenshots arrive inline.
const maxLine = 64 << 20

// ErrClosed is returned for calls made on, or pending when, the stream ends.
var ErrClosed = errors.New("bridge connection closed")

type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// RemoteError is an error the helper reported for a request.
type RemoteError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return e.Message
}

// message is any line the helper writes: a response or an event.
type message struct {
	ID     *int64          `json:"id"`
	Event  string          `json:"event"`
	Result json.RawMessage `json:"result"`
	Error  *RemoteError    `json:"error"`
}

type response struct {
	result json.RawMessage
	err    error
}

// Client correlates newline-delimited JSON requests and responses by a
// monotonically increasing id. A response that arrives after its call timed
// out is discarded.
type Client struct {
	stream      Stream
	callTimeout time.Duration
	logger      *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan response
	err     error

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// Dial opens a stream and waits up to readyTimeout for the helper's ready
// event.
func Dial(ctx context.Context, t Transport, callTimeout, readyTimeout time.Duration, logger *zap.Logger) (*Client, error) {
	stream, err := t.Open(ctx)
	if err != nil {
		return nil, err
	}
	c := newClient(stream, callTimeout, logger)

	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()
	select {
	case <-c.ready:
		return c, nil
	case <-c.done:
		_ = c.Close()
		return nil, fmt.Errorf("bridge exited before ready: %w", c.closeErr())
	case <-timer.C:
		_ = c.Close()
		return nil, &schemas.TimeoutError{Operation: "bridge ready", Deadline: readyTimeout}
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}
}

func newClient(stream Stream, callTimeout time.Duration, logger *zap.Logger) *Client {
	c := &Client{
		stream:      stream,
		callTimeout: callTimeout,
		logger:      logger,
		pending:     make(map[int64]chan response),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.done)
	scanner := bufio.NewScanner(c.stream)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg message
		if err := json.Unmarshal(line, &msg); err != nil {
			c.logger.Warn("Discarding malformed bridge line.", zap.Error(err), zap.Int("bytes", len(line)))
			continue
		}
		if msg.ID == nil {
			if msg.Event == "ready" {
				c.readyOnce.Do(func() { close(c.ready) })
			} else {
				c.logger.Debug("Ignoring bridge event.", zap.String("event", msg.Event))
			}
			continue
		}
		c.deliver(*msg.ID, msg)
	}

	err := scanner.Err()
	if err == nil {
		err = ErrClosed
	} else {
		err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	c.mu.Lock()
	c.err = err
	pending := c.pending
	c.pending = make(map[int64]chan response)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- response{err: err}
	}
}

func (c *Client) deliver(id int64, msg message) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("Discarding late bridge response.", zap.Int64("id", id))
		return
	}
	if msg.Error != nil {
		ch <- response{err: msg.Error}
		return
	}
	ch <- response{result: msg.Result}
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}

// Call sends method and decodes the result into out, which may be nil. It
// fails with a *schemas.TimeoutError when no response arrives within the
// call timeout.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	line, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		c.forget(id)
		return fmt.Errorf("encode %s: %w", method, err)
	}
	c.writeMu.Lock()
	_, err = c.stream.Write(append(line, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("write %s: %w", method, err)
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if resp.err != nil {
			return fmt.Errorf("%s: %w", method, resp.err)
		}
		if out == nil || len(resp.result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-timer.C:
		c.forget(id)
		return &schemas.TimeoutError{Operation: "bridge " + method, Deadline: c.callTimeout}
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close ends the stream and waits for the reader to exit.
func (c *Client) Close() error {
	err := c.stream.Close()
	<-c.done
	return err
}
