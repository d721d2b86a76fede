package dance

import (
	"context"
	"strings"
	"testing"

	"github.com/hildam/relay-flow-go/agent"
	"github.com/hildam/relay-flow-go/agent/human"
	"github.com/hildam/relay-flow-go/agent/stage"
	"github.com/hildam/relay-flow-go/entity/consts"
	"github.com/hildam/relay-flow-go/entity/model"
	"github.com/hildam/relay-flow-go/repo/state"
)

// recorder 记录消息，可选写入槽位
func recorder(store state.Store, key, output string, got *[]*model.Message) stage.Agent {
	return stage.AgentFunc{
		AgentName: key,
		Fn: func(ctx context.Context, message string) error {
			msg, err := model.ParseMessage(message)
			if err != nil {
				return err
			}
			*got = append(*got, msg)
			if output == "" {
				return nil
			}
			_, err = store.Save(ctx, key, output)
			return err
		},
	}
}

func TestDancePipeline(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	_, _ = store.Save(ctx, consts.SlotMemory, "Prefers evening shows.")

	profile, err := LoadProfile(ctx, store, "Ana")
	if err != nil {
		t.Fatal(err)
	}

	var msgs []*model.Message
	agents := Agents{
		Discovery:    recorder(store, consts.SlotOpportunities, "Festival X, Chennai", &msgs),
		DancerFinder: recorder(store, consts.SlotDancers, "", &msgs),
		Application:  recorder(store, consts.SlotApplications, "Dear committee", &msgs),
	}
	feedback := human.NewScripted("focus on Europe", "")

	orch := agent.NewOrchestrator(store, agent.WithFeedback(feedback))
	report, err := orch.Run(ctx, NewPipeline(agents, profile), Query(profile.UserName))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d", len(msgs))
	}

	first := msgs[0]
	if first.Sender != consts.User || first.Receiver != consts.DiscoveryAgent {
		t.Errorf("first route = %s -> %s", first.Sender, first.Receiver)
	}
	if !strings.Contains(first.Content, "MEMORY BANK:\nPrefers evening shows.") || !strings.Contains(first.Content, "I am Ana") {
		t.Errorf("first content = %q", first.Content)
	}

	second := msgs[1]
	if second.Metadata["source"] != consts.SlotOpportunities {
		t.Errorf("second metadata = %v", second.Metadata)
	}
	if !strings.Contains(second.Content, "Context:\nFestival X, Chennai") ||
		!strings.HasSuffix(second.Content, "USER FEEDBACK:\nfocus on Europe") {
		t.Errorf("second content = %q", second.Content)
	}

	third := msgs[2]
	if third.Sender != consts.DancerFinderAgent || third.Receiver != consts.ApplicationAgent {
		t.Errorf("third route = %s -> %s", third.Sender, third.Receiver)
	}
	if !strings.Contains(third.Content, "Help Ana apply.") || !strings.Contains(third.Content, "Dancers:\n"+NoDancers) {
		t.Errorf("third content = %q", third.Content)
	}
	if strings.Contains(third.Content, "USER FEEDBACK") {
		t.Error("empty feedback should not be appended")
	}

	missing := report.Missing()
	if len(missing) != 1 || missing[0] != consts.SlotDancers {
		t.Errorf("missing = %v", missing)
	}
}

func TestLoadProfileDefaults(t *testing.T) {
	p, err := LoadProfile(context.Background(), state.NewMemoryStore(), "")
	if err != nil {
		t.Fatal(err)
	}
	if p.UserName != DefaultUserName || p.Memory != NoMemory {
		t.Errorf("profile = %+v", p)
	}
}

func TestPipelineValid(t *testing.T) {
	a := stage.AgentFunc{AgentName: "x", Fn: func(context.Context, string) error { return nil }}
	p := NewPipeline(Agents{Discovery: a, DancerFinder: a, Application: a}, Profile{UserName: "Ana"})
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(p.EvalKeys) != 2 {
		t.Errorf("eval keys = %v", p.EvalKeys)
	}
}
