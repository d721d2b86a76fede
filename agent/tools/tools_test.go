package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hildam/relay-flow-go/repo/state"
)

func TestSaveAndLoadResults(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	save := NewSaveResults(store, nil)
	load := NewLoadResults(store)

	out, err := save.InvokableRun(ctx, `{"filename":"opportunities_found.txt","content":"Festival X"}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Saved state to ") {
		t.Errorf("save output = %q", out)
	}

	out, err = load.InvokableRun(ctx, `{"filename":"opportunities_found"}`)
	if err != nil || out != "Festival X" {
		t.Errorf("load = %q, %v", out, err)
	}

	out, _ = load.InvokableRun(ctx, `{"filename":"dancers_found.txt"}`)
	if out != "No data found for dancers_found.txt" {
		t.Errorf("load missing = %q", out)
	}
}

func TestInvalidArgumentsReportedToModel(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	out, err := NewSaveResults(store, nil).InvokableRun(ctx, `not json`)
	if err != nil || !strings.HasPrefix(out, "Error: invalid arguments") {
		t.Errorf("save = %q, %v", out, err)
	}
	out, err = NewSaveResults(store, nil).InvokableRun(ctx, `{"filename":"../x","content":"a"}`)
	if err != nil || !strings.HasPrefix(out, "Failed to save state ../x") {
		t.Errorf("save bad key = %q, %v", out, err)
	}
}

func TestDraftApplication(t *testing.T) {
	out, err := NewDraftApplication(nil).InvokableRun(context.Background(),
		`{"opportunity_url":"https://fest.example","opportunity_name":"Natya Utsav","dancer_name":"Ana","dancer_background":"Ten years on stage"}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"To: Natya Utsav", "URL: https://fest.example", "From: Ana", "Ten years on stage", "Sincerely,\nAna"} {
		if !strings.Contains(out, want) {
			t.Errorf("draft missing %q:\n%s", want, out)
		}
	}
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	names := map[string]bool{}
	for _, tl := range append(Results(store, nil), NewDraftApplication(nil)) {
		info, err := tl.Info(ctx)
		if err != nil {
			t.Fatal(err)
		}
		names[info.Name] = true
	}
	for _, n := range []string{SaveResultsName, LoadResultsName, DraftApplicationName} {
		if !names[n] {
			t.Errorf("missing tool %s", n)
		}
	}
}

// lineLogger 记录渲染后的日志行
type lineLogger struct {
	lines []string
}

func (l *lineLogger) Debug(format string, args ...any) { l.add(format, args...) }
func (l *lineLogger) Info(format string, args ...any)  { l.add(format, args...) }
func (l *lineLogger) Error(format string, args ...any) { l.add(format, args...) }

func (l *lineLogger) add(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestSaveResultsLogsKeyVerbatim(t *testing.T) {
	log := &lineLogger{}
	save := NewSaveResults(state.NewMemoryStore(), log)
	out, err := save.InvokableRun(context.Background(), `{"filename":"100%_done.txt","content":"x"}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(log.lines) != 1 || log.lines[0] != out || !strings.Contains(out, "100%_done.txt") {
		t.Errorf("logged %q, status %q", log.lines, out)
	}
}
