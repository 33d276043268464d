package config

import (
	"testing"
	"time"
)

func TestInt(t *testing.T) {
	t.Setenv("CFG_INT", "")
	if n, err := Int("CFG_INT", 7); err != nil || n != 7 {
		t.Fatalf("expected fallback 7, got %d %v", n, err)
	}
	t.Setenv("CFG_INT", "42")
	if n, err := Int("CFG_INT", 7); err != nil || n != 42 {
		t.Fatalf("expected 42, got %d %v", n, err)
	}
	t.Setenv("CFG_INT", "lots")
	if _, err := Int("CFG_INT", 7); err == nil {
		t.Fatal("expected error for malformed integer")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("CFG_DUR", "5")
	if d, err := Duration("CFG_DUR", time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("expected 5s, got %v %v", d, err)
	}
	t.Setenv("CFG_DUR", "250ms")
	if d, err := Duration("CFG_DUR", time.Second); err != nil || d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v %v", d, err)
	}
	t.Setenv("CFG_DUR", "-1s")
	if _, err := Duration("CFG_DUR", time.Second); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CFG_PORT", "70000")
	if _, err := Port("CFG_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("CFG_PORT", "")
	if p, err := Port("CFG_PORT", "8080"); err != nil || p != "8080" {
		t.Fatalf("expected fallback, got %q %v", p, err)
	}
}

func TestListAndBool(t *testing.T) {
	t.Setenv("CFG_LIST", " a, ,b ,")
	got := List("CFG_LIST")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list %q", got)
	}
	t.Setenv("CFG_BOOL", "yes")
	if !Bool("CFG_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("CFG_BOOL", "")
	if !Bool("CFG_BOOL", true) {
		t.Fatal("expected fallback true")
	}
}
