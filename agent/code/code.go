package code

import (
	"context"
	"fmt"

	"github.com/hildam/relay-flow-go/agent"
	"github.com/hildam/relay-flow-go/agent/llmagent"
	"github.com/hildam/relay-flow-go/agent/stage"
	"github.com/hildam/relay-flow-go/entity/consts"
)

// 阶段节点名
const (
	StageWriter     = "code_writer"
	StageReviewer   = "code_reviewer"
	StageRefactorer = "code_refactorer"
)

// Agents 三个阶段的 agent
type Agents struct {
	Writer     stage.Agent
	Reviewer   stage.Agent
	Refactorer stage.Agent
}

// NewPipeline 代码流水线：编写 → 评审 → 重构
func NewPipeline(a Agents) *agent.Pipeline {
	return &agent.Pipeline{
		Name:      consts.CodePipeline,
		GraphName: consts.CodeGraphName,
		Stages: []agent.StageSpec{
			{
				Name:        StageWriter,
				Title:       "Code Writer Agent",
				Agent:       a.Writer,
				Sender:      consts.User,
				Receiver:    consts.CodeWriterAgent,
				OutputKey:   consts.SlotGeneratedCode,
				Placeholder: "No code yet.",
				AskFeedback: true,
				Compose: func(in agent.StageInput) string {
					return in.Query
				},
			},
			{
				Name:        StageReviewer,
				Title:       "Code Reviewer Agent",
				Agent:       a.Reviewer,
				Sender:      consts.CodeWriterAgent,
				Receiver:    consts.CodeReviewerAgent,
				OutputKey:   consts.SlotReviewComments,
				Placeholder: "No review yet.",
				AskFeedback: true,
				Metadata:    map[string]any{"source": consts.SlotGeneratedCode},
				Compose: func(in agent.StageInput) string {
					content := fmt.Sprintf("Code to Review:\n%s", in.Upstream[consts.SlotGeneratedCode])
					return agent.AppendFeedback(content, in.Feedback)
				},
			},
			{
				Name:      StageRefactorer,
				Title:     "Code Refactorer Agent",
				Agent:     a.Refactorer,
				Sender:    consts.CodeReviewerAgent,
				Receiver:  consts.CodeRefactorerAgent,
				OutputKey: consts.SlotRefactoredCode,
				Compose: func(in agent.StageInput) string {
					content := fmt.Sprintf("Original Request:\n%s\n\nOriginal Code:\n%s\n\nReview Comments:\n%s",
						in.Query, in.Upstream[consts.SlotGeneratedCode], in.Upstream[consts.SlotReviewComments])
					return agent.AppendFeedback(content, in.Feedback)
				},
			},
		},
		ReportKeys: []string{consts.SlotGeneratedCode, consts.SlotReviewComments, consts.SlotRefactoredCode},
		EvalKeys:   []string{consts.SlotGeneratedCode, consts.SlotRefactoredCode},
	}
}

// NewAgents 创建三个阶段的 LLM agent，回复直接写入输出槽位
func NewAgents(ctx context.Context, deps llmagent.Deps) (Agents, error) {
	writer, err := llmagent.New(ctx, deps, llmagent.Config{
		Name:       consts.CodeWriterAgent,
		PromptName: "code_writer",
		OutputKey:  consts.SlotGeneratedCode,
	})
	if err != nil {
		return Agents{}, err
	}

	reviewer, err := llmagent.New(ctx, deps, llmagent.Config{
		Name:       consts.CodeReviewerAgent,
		PromptName: "code_reviewer",
		OutputKey:  consts.SlotReviewComments,
	})
	if err != nil {
		return Agents{}, err
	}

	refactorer, err := llmagent.New(ctx, deps, llmagent.Config{
		Name:       consts.CodeRefactorerAgent,
		PromptName: "code_refactorer",
		OutputKey:  consts.SlotRefactoredCode,
	})
	if err != nil {
		return Agents{}, err
	}

	return Agents{Writer: writer, Reviewer: reviewer, Refactorer: refactorer}, nil
}
