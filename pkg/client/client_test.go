package client

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// fakeServer accepts exactly one connection, echoes reply for the given
// request line, and closes.
func fakeServer(t *testing.T, reply string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_, _ = bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte(reply + "\n"))
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return ln.Addr().String()
}

func TestClient_Status(t *testing.T) {
	addr := fakeServer(t, "web:0 running")
	c := New(Config{Addr: addr, Timeout: time.Second})

	reply, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if reply != "web:0 running" {
		t.Errorf("reply = %q", reply)
	}
}

func TestClient_ErrorReplyBecomesError(t *testing.T) {
	addr := fakeServer(t, `error: unknown job "nope"`)
	c := New(Config{Addr: addr, Timeout: time.Second})

	_, err := c.Start("nope", -1)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_IsReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	c := New(Config{Addr: ln.Addr().String(), Timeout: time.Second})
	if !c.IsReachable() {
		t.Error("expected reachable")
	}

	unreachable := New(Config{Addr: "127.0.0.1:1", Timeout: 100 * time.Millisecond})
	if unreachable.IsReachable() {
		t.Error("expected unreachable")
	}
}

func TestTarget(t *testing.T) {
	if got := target("start", "web", -1); got != "start web" {
		t.Errorf("target(all) = %q", got)
	}
	if got := target("stop", "web", 2); got != "stop web:2" {
		t.Errorf("target(index) = %q", got)
	}
}
