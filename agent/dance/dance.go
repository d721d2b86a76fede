package dance

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/hildam/relay-flow-go/agent"
	"github.com/hildam/relay-flow-go/agent/llmagent"
	"github.com/hildam/relay-flow-go/agent/stage"
	"github.com/hildam/relay-flow-go/agent/tools"
	"github.com/hildam/relay-flow-go/entity/consts"
	"github.com/hildam/relay-flow-go/repo/state"
)

// 阶段节点名
const (
	StageDiscovery    = "discovery"
	StageDancerFinder = "dancer_finder"
	StageApplication  = "application"
)

// 输出缺失时传给下游的文本
const (
	NoOpportunities = "No opportunities yet."
	NoDancers       = "No dancers yet."
	NoMemory        = "No memory found."
	DefaultUserName = "User"
)

// Agents 三个阶段的 agent
type Agents struct {
	Discovery    stage.Agent
	DancerFinder stage.Agent
	Application  stage.Agent
}

// Profile 用户信息
type Profile struct {
	UserName string // 用户名
	Memory   string // 长期记忆
}

// Query 默认的用户请求
func Query(userName string) string {
	if userName == "" {
		userName = DefaultUserName
	}
	return fmt.Sprintf(`
I am %[1]s, a dancer seeking performance opportunities worldwide.

Please help me find:
1. Upcoming dance festivals, performance opportunities, and collaboration opportunities at venues and cultural events anywhere in the world
2. Information about other prominent dancers in my style (for networking and collaboration)

Then draft applications for me (%[1]s) to the most promising opportunities you find.
`, userName)
}

// LoadProfile 读取长期记忆，缺失时使用默认文本
func LoadProfile(ctx context.Context, store state.Store, userName string) (Profile, error) {
	if userName == "" {
		userName = DefaultUserName
	}
	memory, ok, err := state.LoadOptional(ctx, store, consts.SlotMemory)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		memory = NoMemory
	}
	return Profile{UserName: userName, Memory: memory}, nil
}

// NewPipeline 舞蹈机会流水线：发现 → 舞者查找 → 申请起草
func NewPipeline(a Agents, profile Profile) *agent.Pipeline {
	return &agent.Pipeline{
		Name:      consts.DancePipeline,
		GraphName: consts.DanceGraphName,
		Stages: []agent.StageSpec{
			{
				Name:        StageDiscovery,
				Title:       "Discovery Agent",
				Agent:       a.Discovery,
				Sender:      consts.User,
				Receiver:    consts.DiscoveryAgent,
				OutputKey:   consts.SlotOpportunities,
				Placeholder: NoOpportunities,
				AskFeedback: true,
				Compose: func(in agent.StageInput) string {
					return fmt.Sprintf("\nMEMORY BANK:\n%s\n\nCURRENT REQUEST:\n%s\n", profile.Memory, in.Query)
				},
			},
			{
				Name:        StageDancerFinder,
				Title:       "Dancer Finder Agent",
				Agent:       a.DancerFinder,
				Sender:      consts.DiscoveryAgent,
				Receiver:    consts.DancerFinderAgent,
				OutputKey:   consts.SlotDancers,
				Placeholder: NoDancers,
				AskFeedback: true,
				Metadata:    map[string]any{"source": consts.SlotOpportunities},
				Compose: func(in agent.StageInput) string {
					content := fmt.Sprintf("%s\n\nContext:\n%s", in.Query, in.Upstream[consts.SlotOpportunities])
					return agent.AppendFeedback(content, in.Feedback)
				},
			},
			{
				Name:      StageApplication,
				Title:     "Application Agent",
				Agent:     a.Application,
				Sender:    consts.DancerFinderAgent,
				Receiver:  consts.ApplicationAgent,
				OutputKey: consts.SlotApplications,
				Compose: func(in agent.StageInput) string {
					content := fmt.Sprintf(`
Help %s apply.

CONTEXT:
Opportunities:
%s

Dancers:
%s

TASK:
Draft applications. Save to 'applications_drafted.txt'.
If no specific opportunities, draft general inquiry.
`, profile.UserName, in.Upstream[consts.SlotOpportunities], in.Upstream[consts.SlotDancers])
					return agent.AppendFeedback(content, in.Feedback)
				},
			},
		},
		ReportKeys: []string{consts.SlotOpportunities, consts.SlotDancers, consts.SlotApplications},
		EvalKeys:   []string{consts.SlotOpportunities, consts.SlotApplications},
	}
}

// NewAgents 创建三个阶段的 LLM agent，search 为外部检索工具（如 MCP）
func NewAgents(ctx context.Context, deps llmagent.Deps, search []tool.BaseTool) (Agents, error) {
	results := tools.Results(deps.Store, deps.Logger)

	discovery, err := llmagent.New(ctx, deps, llmagent.Config{
		Name:       consts.DiscoveryAgent,
		PromptName: "discovery",
		Tools:      append(append([]tool.BaseTool{}, search...), results...),
		OutputKey:  consts.SlotOpportunities,
	})
	if err != nil {
		return Agents{}, err
	}

	finder, err := llmagent.New(ctx, deps, llmagent.Config{
		Name:       consts.DancerFinderAgent,
		PromptName: "dancer_finder",
		Tools:      append(append([]tool.BaseTool{}, search...), results...),
		OutputKey:  consts.SlotDancers,
	})
	if err != nil {
		return Agents{}, err
	}

	application, err := llmagent.New(ctx, deps, llmagent.Config{
		Name:       consts.ApplicationAgent,
		PromptName: "application",
		Tools:      append(results, tools.NewDraftApplication(deps.Logger)),
		OutputKey:  consts.SlotApplications,
	})
	if err != nil {
		return Agents{}, err
	}

	return Agents{Discovery: discovery, DancerFinder: finder, Application: application}, nil
}
