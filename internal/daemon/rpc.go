package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// rpcTimeout bounds every network wait against the daemon: the connect and
// the entire matching-response read, not just a single read call.
const rpcTimeout = 700 * time.Millisecond

var (
	// ErrRPCTimeout means the daemon did not answer within the deadline.
	ErrRPCTimeout = errors.New("timed out waiting for daemon response")
	// ErrConnClosed means the daemon closed the connection mid-exchange.
	ErrConnClosed = errors.New("connection closed")
	// ErrMissingResult means a response carried neither result nor error,
	// which violates the protocol.
	ErrMissingResult = errors.New("daemon response missing result")
)

// DaemonError is a failure reported by the daemon itself via the error.message
// field of a response. Its text is what the authorization heuristic sniffs.
type DaemonError struct {
	Message string
}

func (e *DaemonError) Error() string {
	return e.Message
}

// rpcClient speaks the line-delimited JSON control protocol over one
// short-lived TCP connection. Connections are never reused across probe
// attempts; every probe dials fresh and discards the socket.
type rpcClient struct {
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64
}

func dialRPC(connectAddr string) (*rpcClient, error) {
	conn, err := net.DialTimeout("tcp", connectAddr, rpcTimeout)
	if err != nil {
		return nil, err
	}
	return &rpcClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

func (c *rpcClient) Close() {
	c.conn.Close()
}

// Call writes one newline-terminated {id, method, params} object and waits
// for the response with the matching id. A response tagged with an error
// message is returned as a *DaemonError.
func (c *rpcClient) Call(method string, params any) (json.RawMessage, error) {
	c.nextID++
	id := c.nextID

	request := struct {
		ID     uint64 `json:"id"`
		Method string `json:"method"`
		Params any    `json:"params"`
	}{ID: id, Method: method, Params: params}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	payload = append(payload, '\n')

	c.conn.SetWriteDeadline(time.Now().Add(rpcTimeout))
	if _, err := c.conn.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}

	return c.readResponse(id)
}

// readResponse reads newline-delimited frames until one with the expected id
// arrives, skipping blank lines and frames for other ids. One deadline bounds
// the whole wait.
func (c *rpcClient) readResponse(expectedID uint64) (json.RawMessage, error) {
	deadline := time.Now().Add(rpcTimeout)
	c.conn.SetReadDeadline(deadline)

	for {
		if !time.Now().Before(deadline) {
			return nil, ErrRPCTimeout
		}

		line, err := c.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, ErrRPCTimeout
			}
			if errors.Is(err, io.EOF) {
				return nil, ErrConnClosed
			}
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var frame struct {
			ID     uint64          `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return nil, fmt.Errorf("malformed daemon response: %w", err)
		}
		if frame.ID != expectedID {
			continue
		}
		if frame.Error != nil {
			return nil, &DaemonError{Message: frame.Error.Message}
		}
		if frame.Result == nil {
			return nil, ErrMissingResult
		}
		return frame.Result, nil
	}
}
