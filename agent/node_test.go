package agent

import (
	"context"
	"testing"

	"github.com/hildam/relay-flow-go/agent/stage"
	"github.com/hildam/relay-flow-go/repo/state"
)

func TestStageNodeFailsWithoutState(t *testing.T) {
	calls := 0
	spec := StageSpec{
		Name: "writer",
		Agent: stage.AgentFunc{AgentName: "Writer", Fn: func(context.Context, string) error {
			calls++
			return nil
		}},
		Sender:    "User",
		Receiver:  "Writer",
		OutputKey: "draft",
		Compose:   func(in StageInput) string { return in.Query },
	}
	o := NewOrchestrator(state.NewMemoryStore())

	// 图外调用时没有本地状态
	if _, err := o.stageNode(spec, "")(context.Background(), ""); err == nil {
		t.Fatal("expected state read error")
	}
	if calls != 0 {
		t.Errorf("agent invoked %d times without state", calls)
	}
}
