package llmagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/relay-flow-go/agent/tools"
	"github.com/hildam/relay-flow-go/repo/state"
)

type reply struct {
	msg *schema.Message
	err error
}

// fakeModel 按顺序返回预设回复
type fakeModel struct {
	mu      sync.Mutex
	replies []reply
	inputs  [][]*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if len(f.replies) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.msg, r.err
}

func (f *fakeModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func fastRetry() RetryPolicy {
	p := DefaultRetryPolicy()
	p.InitialDelay = time.Millisecond
	return p
}

func TestInvokeSavesReply(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	fm := &fakeModel{replies: []reply{{msg: schema.AssistantMessage("func main() {}", nil)}}}

	a, err := New(ctx, Deps{Model: fm, Store: store, Retry: fastRetry()},
		Config{Name: "Code Writer", PromptName: "code_writer", OutputKey: "generated_code"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Invoke(ctx, "write hello world"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx, "generated_code")
	if err != nil || got != "func main() {}" {
		t.Fatalf("slot = %q, %v", got, err)
	}

	in := fm.inputs[0]
	if len(in) != 2 || in[0].Role != schema.System || in[1].Role != schema.User {
		t.Fatalf("unexpected messages: %+v", in)
	}
	if !strings.Contains(in[0].Content, "`Code Writer`") {
		t.Errorf("system prompt not rendered with agent name: %q", in[0].Content)
	}
	if in[1].Content != "write hello world" {
		t.Errorf("user message = %q", in[1].Content)
	}
}

// lineLogger 记录渲染后的日志行
type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) Debug(string, ...any) {}
func (l *lineLogger) Info(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}
func (l *lineLogger) Error(format string, args ...any) { l.Info(format, args...) }

func TestInvokeLogsSaveStatusVerbatim(t *testing.T) {
	ctx := context.Background()
	log := &lineLogger{}
	fm := &fakeModel{replies: []reply{{msg: schema.AssistantMessage("done", nil)}}}
	a, err := New(ctx, Deps{Model: fm, Store: state.NewMemoryStore(), Logger: log},
		Config{Name: "w", PromptName: "code_writer", OutputKey: "50%_draft"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Invoke(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	want := "Saved state to memory://50%_draft.txt"
	for _, line := range log.lines {
		if line == want {
			return
		}
	}
	t.Errorf("status line %q not in %q", want, log.lines)
}

func TestInvokeKeepsExistingSlot(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	if _, err := store.Save(ctx, "generated_code", "from tool"); err != nil {
		t.Fatal(err)
	}
	fm := &fakeModel{replies: []reply{{msg: schema.AssistantMessage("final answer", nil)}}}
	a, err := New(ctx, Deps{Model: fm, Store: store}, Config{Name: "w", PromptName: "code_writer", OutputKey: "generated_code"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Invoke(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Load(ctx, "generated_code"); got != "from tool" {
		t.Errorf("slot overwritten: %q", got)
	}
}

func TestInvokeRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	transient := errors.New("error, status code: 503, status: 503 Service Unavailable")
	fm := &fakeModel{replies: []reply{
		{err: transient},
		{err: transient},
		{msg: schema.AssistantMessage("ok", nil)},
	}}
	store := state.NewMemoryStore()
	a, err := New(ctx, Deps{Model: fm, Store: store, Retry: fastRetry()},
		Config{Name: "w", PromptName: "code_writer", OutputKey: "generated_code"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Invoke(ctx, "x"); err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if fm.calls() != 3 {
		t.Errorf("calls = %d, want 3", fm.calls())
	}
}

func TestInvokeGivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	transient := errors.New("error, status code: 429, status: 429 Too Many Requests")
	fm := &fakeModel{replies: []reply{{err: transient}, {err: transient}, {err: transient}, {msg: schema.AssistantMessage("late", nil)}}}
	a, err := New(ctx, Deps{Model: fm, Retry: fastRetry()}, Config{Name: "w", PromptName: "code_writer"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Invoke(ctx, "x"); err == nil {
		t.Fatal("expected error")
	}
	if fm.calls() != 3 {
		t.Errorf("calls = %d, want 3", fm.calls())
	}
}

func TestInvokeDoesNotRetryPermanentErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("error, status code: 401, status: 401 Unauthorized")
	fm := &fakeModel{replies: []reply{{err: boom}, {msg: schema.AssistantMessage("never", nil)}}}
	a, err := New(ctx, Deps{Model: fm, Retry: fastRetry()}, Config{Name: "w", PromptName: "code_writer"})
	if err != nil {
		t.Fatal(err)
	}
	err = a.Invoke(ctx, "x")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if fm.calls() != 1 {
		t.Errorf("calls = %d, want 1", fm.calls())
	}
}

func TestRetryable(t *testing.T) {
	p := DefaultRetryPolicy()
	cases := map[string]bool{
		"error, status code: 429, status: 429": true,
		"error, status code: 500, status: 500": true,
		"error, status code: 504, status: 504": true,
		"error, status code: 400, status: 400": false,
		"dial tcp: connection refused":         false,
	}
	for msg, want := range cases {
		if got := p.Retryable(errors.New(msg)); got != want {
			t.Errorf("Retryable(%q) = %v, want %v", msg, got, want)
		}
	}
	if p.Retryable(context.Canceled) {
		t.Error("context.Canceled should not be retryable")
	}
}

func TestInvokeWithTools(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	fm := &fakeModel{replies: []reply{
		{msg: schema.AssistantMessage("", []schema.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: schema.FunctionCall{
				Name:      tools.SaveResultsName,
				Arguments: `{"filename":"opportunities_found.txt","content":"Festival X"}`,
			},
		}})},
		{msg: schema.AssistantMessage("saved one opportunity", nil)},
	}}

	a, err := New(ctx, Deps{Model: fm, Store: store, Retry: fastRetry()}, Config{
		Name:       "Discovery Agent",
		PromptName: "discovery",
		Tools:      []tool.BaseTool{tools.NewSaveResults(store, nil)},
		OutputKey:  "opportunities_found",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Invoke(ctx, "find salsa festivals"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx, "opportunities_found")
	if err != nil || got != "Festival X" {
		t.Fatalf("slot = %q, %v", got, err)
	}
	if fm.calls() != 2 {
		t.Errorf("calls = %d, want 2", fm.calls())
	}
}

func TestNewRequiresModel(t *testing.T) {
	if _, err := New(context.Background(), Deps{}, Config{Name: "x"}); err == nil {
		t.Fatal("expected error without model")
	}
}
