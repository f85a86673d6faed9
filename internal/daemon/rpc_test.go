package daemon

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

// scriptedServer accepts one connection and hands it to the given handler.
func scriptedServer(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	return listener.Addr().String()
}

func dialTestRPC(t *testing.T, addr string) *rpcClient {
	t.Helper()
	client, err := dialRPC(addr)
	if err != nil {
		t.Fatalf("dialRPC failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestCall_SkipsBlankAndForeignFrames(t *testing.T) {
	addr := scriptedServer(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		reader.ReadString('\n')
		// Noise before the real answer: blank lines and a frame for a
		// different request id.
		fmt.Fprintf(conn, "\n")
		fmt.Fprintf(conn, "   \n")
		fmt.Fprintf(conn, `{"id":99,"result":"stale"}`+"\n")
		fmt.Fprintf(conn, `{"id":1,"result":"pong"}`+"\n")
	})

	client := dialTestRPC(t, addr)
	result, err := client.Call("ping", struct{}{})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if string(result) != `"pong"` {
		t.Errorf("result = %s, want \"pong\"", result)
	}
}

func TestCall_DaemonError(t *testing.T) {
	addr := scriptedServer(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		reader.ReadString('\n')
		fmt.Fprintf(conn, `{"id":1,"error":{"message":"Unauthorized"}}`+"\n")
	})

	client := dialTestRPC(t, addr)
	_, err := client.Call("ping", struct{}{})
	var daemonErr *DaemonError
	if !errors.As(err, &daemonErr) {
		t.Fatalf("expected *DaemonError, got %T: %v", err, err)
	}
	if daemonErr.Message != "Unauthorized" {
		t.Errorf("message = %q, want Unauthorized", daemonErr.Message)
	}
}

func TestCall_MissingResult(t *testing.T) {
	addr := scriptedServer(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		reader.ReadString('\n')
		fmt.Fprintf(conn, `{"id":1}`+"\n")
	})

	client := dialTestRPC(t, addr)
	_, err := client.Call("ping", struct{}{})
	if !errors.Is(err, ErrMissingResult) {
		t.Fatalf("expected ErrMissingResult, got: %v", err)
	}
}

func TestCall_MalformedFrame(t *testing.T) {
	addr := scriptedServer(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		reader.ReadString('\n')
		fmt.Fprintf(conn, "definitely not json\n")
	})

	client := dialTestRPC(t, addr)
	_, err := client.Call("ping", struct{}{})
	if err == nil {
		t.Fatal("expected error for malformed frame")
	}
	if errors.Is(err, ErrRPCTimeout) || errors.Is(err, ErrConnClosed) {
		t.Errorf("malformed frame must be its own failure, got: %v", err)
	}
}

func TestCall_ConnClosed(t *testing.T) {
	addr := scriptedServer(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		reader.ReadString('\n')
		// Close without answering.
	})

	client := dialTestRPC(t, addr)
	_, err := client.Call("ping", struct{}{})
	if !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed, got: %v", err)
	}
}

func TestCall_TimeoutIsBounded(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	addr := scriptedServer(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		reader.ReadString('\n')
		// Never answer.
		<-block
	})

	client := dialTestRPC(t, addr)
	start := time.Now()
	_, err := client.Call("ping", struct{}{})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrRPCTimeout) {
		t.Fatalf("expected ErrRPCTimeout, got: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("timeout took %v, expected roughly the 700ms deadline", elapsed)
	}
}

func TestCall_DeadlineCoversForeignFrameFlood(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	addr := scriptedServer(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		reader.ReadString('\n')
		// Stream frames that never match the request id. The deadline
		// covers the whole wait, not each individual read.
		for i := 0; ; i++ {
			select {
			case <-block:
				return
			default:
			}
			fmt.Fprintf(conn, `{"id":%d,"result":"noise"}`+"\n", 1000+i)
			time.Sleep(50 * time.Millisecond)
		}
	})

	client := dialTestRPC(t, addr)
	start := time.Now()
	_, err := client.Call("ping", struct{}{})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrRPCTimeout) {
		t.Fatalf("expected ErrRPCTimeout, got: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("foreign frames must not extend the deadline, took %v", elapsed)
	}
}
