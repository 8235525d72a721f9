// Package wirehost connects to an out-of-process host over a WebSocket
// speaking JSON-RPC 2.0. It is a host-integration collaborator: the
// accumulation core never depends on it, it only consumes the resulting
// host.Conn.
package wirehost

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rpcaccum/internal/host"
	"rpcaccum/internal/jsonrpc"
)

// CodePartialBatch is the error code a host uses to report that a prefix of
// a batch succeeded before a call failed. The error data carries
// {"index": n, "partial": [...]}.
const CodePartialBatch = -32001

const handshakeTimeout = 10 * time.Second

// partialData is the error payload attached to a partial batch failure.
type partialData struct {
	Index   int           `json:"index"`
	Partial []interface{} `json:"partial"`
}

// hostInfo is the result of host.info.
type hostInfo struct {
	ChannelID int                    `json:"channelId"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Client is a host.Conn backed by a single WebSocket connection. Responses
// are multiplexed back to their callers by request ID. There is no
// reconnection and no retry; a broken connection fails every pending call.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	pending   map[int64]chan *jsonrpc.Response
	pendingMu sync.Mutex
	reqID     int64

	channelID int
	metadata  map[string]interface{}

	table   host.DispatchTable
	tableMu sync.RWMutex

	logger    zerolog.Logger
	closeChan chan struct{}
	closeOnce sync.Once
}

var _ host.Conn = (*Client)(nil)

// Dial connects to a host at url, starts the read loop, and fetches the
// host's identity via host.info.
func Dial(ctx context.Context, url string, logger zerolog.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host: %w", err)
	}

	c := &Client{
		conn:      conn,
		pending:   make(map[int64]chan *jsonrpc.Response),
		table:     make(host.DispatchTable),
		logger:    logger.With().Str("component", "wirehost").Logger(),
		closeChan: make(chan struct{}),
	}
	go c.readLoop()

	raw, err := c.roundTrip(ctx, host.MethodInfo, nil)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("host.info: %w", err)
	}
	var info hostInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		c.Close()
		return nil, fmt.Errorf("host.info: %w", err)
	}
	c.channelID = info.ChannelID
	c.metadata = info.Metadata

	c.logger.Info().Str("url", url).Int("channel", c.channelID).Msg("connected to host")
	return c, nil
}

// Close tears down the connection and fails every pending call.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.conn.Close()
		c.failPending(fmt.Errorf("connection closed"))
	})
}

// readLoop routes responses to their pending callers by request ID.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeChan:
			default:
				c.logger.Error().Err(err).Msg("host connection lost")
			}
			c.failPending(fmt.Errorf("host connection lost: %w", err))
			return
		}

		resp, err := jsonrpc.ParseResponse(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("discarding unparseable host message")
			continue
		}
		id, ok := resp.ID.Int64()
		if !ok {
			c.logger.Warn().Msg("discarding host message without numeric id")
			continue
		}

		c.pendingMu.Lock()
		ch := c.pending[id]
		delete(c.pending, id)
		c.pendingMu.Unlock()
		if ch != nil {
			ch <- resp
		}
	}
}

// failPending completes every pending call with err.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan *jsonrpc.Response)
	c.pendingMu.Unlock()

	resp := jsonrpc.NewErrorResponse(jsonrpc.NewIDInt(0), jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error()))
	for _, ch := range pending {
		ch <- resp
	}
}

// roundTrip sends one request and waits for its response.
func (c *Client) roundTrip(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.reqID, 1)
	req, err := jsonrpc.NewRequest(method, params, jsonrpc.NewIDInt(id))
	if err != nil {
		return nil, err
	}
	data, err := req.Bytes()
	if err != nil {
		return nil, err
	}

	ch := make(chan *jsonrpc.Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.HasError() {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-c.closeChan:
		return nil, fmt.Errorf("connection closed")
	}
}

// BatchExecute implements host.Conn. A CodePartialBatch error from the host
// is decoded into a *host.BatchError carrying the succeeded prefix.
func (c *Client) BatchExecute(ctx context.Context, calls []host.Call) ([]interface{}, error) {
	raw, err := c.roundTrip(ctx, host.MethodBatchExecute, calls)
	if err != nil {
		if rpcErr, ok := err.(*jsonrpc.Error); ok && rpcErr.Code == CodePartialBatch {
			var pd partialData
			if jerr := json.Unmarshal(rpcErr.Data, &pd); jerr == nil {
				return nil, &host.BatchError{Index: pd.Index, Partial: pd.Partial, Err: rpcErr}
			}
		}
		return nil, err
	}

	var results []interface{}
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("batch result is not an array: %w", err)
	}
	return results, nil
}

// Dispatch implements host.Conn.
func (c *Client) Dispatch(ctx context.Context, plugin, method string, args ...interface{}) (interface{}, error) {
	params := []interface{}{plugin, method, args}
	raw, err := c.roundTrip(ctx, host.MethodDispatch, params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var result interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ChannelID implements host.Conn.
func (c *Client) ChannelID() int {
	return c.channelID
}

// Metadata implements host.Conn.
func (c *Client) Metadata() map[string]interface{} {
	return c.metadata
}

// DispatchTable implements host.Conn. The table is client-side state; it is
// not synchronized to the remote host.
func (c *Client) DispatchTable() host.DispatchTable {
	c.tableMu.RLock()
	defer c.tableMu.RUnlock()
	return c.table
}

// SetDispatchTable implements host.Conn.
func (c *Client) SetDispatchTable(table host.DispatchTable) {
	c.tableMu.Lock()
	c.table = table
	c.tableMu.Unlock()
}
