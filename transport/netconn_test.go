package transport

import (
	"context"
	"net"
	"testing"
)

func TestSocketConnectDisconnectReuse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	s := NewSocket()
	if s.Connected() {
		t.Fatal("fresh socket must not be connected")
	}
	if err := s.Connect(context.Background(), ln.Addr()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !s.Connected() || s.RemoteAddr() == nil {
		t.Fatal("socket should be connected with a peer address")
	}
	if err := s.Disconnect(true); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if s.Connected() {
		t.Fatal("socket must be disconnected")
	}
	if err := s.Connect(context.Background(), ln.Addr()); err != nil {
		t.Fatalf("reconnect after reuse: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestListenSocketAccept(t *testing.T) {
	ls, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ls.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ls.Accept()
		if err != nil {
			done <- err
			return
		}
		conn.Close()
		done <- nil
	}()

	c, err := net.Dial("tcp", ls.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c.Close()
	if err := <-done; err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func TestListenSocketCloseFailsAccept(t *testing.T) {
	ls, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ls.Close()
	if _, err := ls.Accept(); err == nil {
		t.Fatal("accept on a closed listener must fail")
	}
}
