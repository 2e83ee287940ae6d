package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestDialTCPConnectsToListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := DialTCP(ctx, ln.Addr().String(), 500*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	if tr.Kind() != KindDirectTCP {
		t.Fatalf("expected KindDirectTCP, got %v", tr.Kind())
	}
	if tr.MaxPayload() <= 0 {
		t.Fatalf("expected positive MaxPayload")
	}

	select {
	case server := <-accepted:
		defer server.Close()
	case <-time.After(2 * time.Second):
		t.Fatalf("listener never accepted")
	}
}

func TestDialTCPRetriesUntilContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err := DialTCP(ctx, "127.0.0.1:1", 30*time.Millisecond, 20*time.Millisecond)
	if err == nil {
		t.Fatalf("expected dial failure against an unroutable port")
	}
}

func TestWrapTCPConnRoundTripsData(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		conn.Write(buf)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	tr := WrapTCPConn(conn)
	defer tr.Close()

	if _, err := tr.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(tr, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", buf)
	}
	<-done
}
