package util

import (
	"io"
	"net"
	"testing"
)

func TestIsClosed(t *testing.T) {
	if !IsClosed(nil) {
		t.Error("nil should count as closed")
	}
	if !IsClosed(io.EOF) {
		t.Error("io.EOF should count as closed")
	}
	if !IsClosed(net.ErrClosed) {
		t.Error("net.ErrClosed should count as closed")
	}
	if IsClosed(io.ErrUnexpectedEOF) {
		t.Error("ErrUnexpectedEOF should NOT count as closed")
	}
}

func TestCloseWrite_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	done := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		done <- data
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.Write([]byte("bye")) //nolint:errcheck
	if err := CloseWrite(conn); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}
	if got := string(<-done); got != "bye" {
		t.Errorf("peer read %q, want %q", got, "bye")
	}
}

func TestCloseWrite_Unsupported(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	if err := CloseWrite(a); err != nil {
		t.Errorf("CloseWrite on pipe: %v", err)
	}
	if err := CloseRead(a); err != nil {
		t.Errorf("CloseRead on pipe: %v", err)
	}
}
