package human

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConsoleCollect(t *testing.T) {
	out := &bytes.Buffer{}
	c := NewConsole(strings.NewReader("  focus on Europe \n\n"), out, 5)

	got, err := c.Collect(context.Background(), Request{Stage: "Discovery Agent", Next: "Dancer Finder Agent", Output: "festival list"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "focus on Europe" {
		t.Fatalf("unexpected feedback %q", got)
	}
	printed := out.String()
	for _, want := range []string{"[Discovery Agent] Completed", "Next: Dancer Finder Agent", "feedback for Dancer Finder Agent", "festi...", "> "} {
		if !strings.Contains(printed, want) {
			t.Fatalf("output missing %q:\n%s", want, printed)
		}
	}

	// 空行表示没有反馈
	got, err = c.Collect(context.Background(), Request{Stage: "Dancer Finder Agent"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("expected empty feedback, got %q", got)
	}
}

func TestConsoleEOF(t *testing.T) {
	c := NewConsole(strings.NewReader("last words"), io.Discard, 0)
	got, err := c.Ask(context.Background(), "> ")
	if err != nil {
		t.Fatal(err)
	}
	if got != "last words" {
		t.Fatalf("unexpected input %q", got)
	}
}

func TestConsoleCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := NewConsole(r, io.Discard, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Ask(ctx, "> ")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConsoleAskAfterCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := NewConsole(r, io.Discard, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Ask(ctx, "> "); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// 取消后的下一次读取拿到完整的一行
	go func() {
		_, _ = w.Write([]byte("keep going\n"))
	}()
	got, err := c.Ask(context.Background(), "> ")
	if err != nil {
		t.Fatal(err)
	}
	if got != "keep going" {
		t.Fatalf("unexpected input %q", got)
	}
}

func TestConsoleAfterEOF(t *testing.T) {
	c := NewConsole(strings.NewReader("only\n"), io.Discard, 0)
	for i, want := range []string{"only", "", ""} {
		got, err := c.Ask(context.Background(), "> ")
		if err != nil || got != want {
			t.Fatalf("ask %d = %q, %v; want %q", i, got, err, want)
		}
	}
}

func TestScripted(t *testing.T) {
	s := NewScripted("first")
	got, _ := s.Collect(context.Background(), Request{Stage: "a"})
	if got != "first" {
		t.Fatalf("unexpected %q", got)
	}
	got, _ = s.Collect(context.Background(), Request{Stage: "b"})
	if got != "" {
		t.Fatalf("expected empty after answers run out, got %q", got)
	}
	if len(s.Requests) != 2 || s.Requests[1].Stage != "b" {
		t.Fatalf("unexpected requests %+v", s.Requests)
	}
}

func TestNone(t *testing.T) {
	got, err := None().Collect(context.Background(), Request{})
	if got != "" || err != nil {
		t.Fatalf("None = %q, %v", got, err)
	}
}
