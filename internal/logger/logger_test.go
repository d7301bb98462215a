package logger_test

import (
	"strings"
	"testing"

	"github.com/db47h/uartbridge/internal/logger"
)

func TestLogger(t *testing.T) {
	logger.Clear()
	var b strings.Builder

	logger.Write(&b)
	if b.String() != "" {
		t.Fatalf("expected empty log, got %q", b.String())
	}

	logger.Log(logger.Allow, "test", "this is a test")
	logger.Write(&b)
	if b.String() != "test: this is a test\n" {
		t.Fatalf("got %q", b.String())
	}

	b.Reset()
	logger.Logf(logger.Allow, "test2", "this is test #%d", 2)
	logger.Logf(logger.Allow, "test2", "this is test #%d", 2)
	logger.Write(&b)
	if exp := "test: this is a test\ntest2: this is test #2 (repeat x2)\n"; b.String() != exp {
		t.Fatalf("got %q, expected %q", b.String(), exp)
	}

	// asking for too many entries is fine
	b.Reset()
	logger.Tail(&b, 100)
	if strings.Count(b.String(), "\n") != 2 {
		t.Fatalf("got %q", b.String())
	}

	b.Reset()
	logger.Tail(&b, 1)
	if b.String() != "test2: this is test #2 (repeat x2)\n" {
		t.Fatalf("got %q", b.String())
	}

	b.Reset()
	logger.Tail(&b, 0)
	if b.String() != "" {
		t.Fatalf("got %q", b.String())
	}
}

func TestPermission(t *testing.T) {
	logger.Clear()
	logger.Log(logger.Deny, "tag", "denied")
	logger.Log(logger.Verbose(false), "tag", "quiet")
	logger.Log(logger.Verbose(true), "tag", "loud")
	e := logger.Entries()
	if len(e) != 1 || e[0].Detail != "loud" {
		t.Fatalf("unexpected entries %v", e)
	}
}

func TestEcho(t *testing.T) {
	logger.Clear()
	var b strings.Builder
	logger.SetEcho(&b)
	defer logger.SetEcho(nil)
	logger.Log(logger.Allow, "uart0", "hello\nworld")
	if b.String() != "uart0: helloworld\n" {
		t.Fatalf("got %q", b.String())
	}
}
