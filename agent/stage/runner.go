package stage

import (
	"context"
	"fmt"

	"github.com/hildam/relay-flow-go/repo/logger"
	"github.com/hildam/relay-flow-go/repo/state"
)

// Agent 外部的文本生成能力，通过写入状态槽位产出结果
type Agent interface {
	// Name agent 名称
	Name() string
	// Invoke 以序列化后的消息调用 agent，可能耗时较长
	Invoke(ctx context.Context, message string) error
}

// AgentFunc 将函数适配为 Agent
type AgentFunc struct {
	AgentName string
	Fn        func(ctx context.Context, message string) error
}

func (a AgentFunc) Name() string { return a.AgentName }

func (a AgentFunc) Invoke(ctx context.Context, message string) error { return a.Fn(ctx, message) }

// Stage 流水线中的一步：一次 agent 调用绑定一个输出槽位
type Stage struct {
	Name      string // 阶段名，用于日志
	Agent     Agent  // 执行的 agent
	Message   string // 序列化后的消息
	OutputKey string // 期望的输出槽位
}

// Result 阶段执行结果
type Result struct {
	Content string // 槽位内容
	Found   bool   // 槽位是否有内容
	Cached  bool   // 是否因槽位已有内容而跳过执行
}

// Runner 阶段执行器，输出槽位已有内容时跳过执行
type Runner struct {
	store state.Store
	log   logger.Logger
}

// NewRunner 创建实例
func NewRunner(store state.Store, log logger.Logger) *Runner {
	return &Runner{
		store: store,
		log:   logger.OrNop(log),
	}
}

// Run 执行阶段。输出槽位已有内容时直接返回，不调用 agent；
// 否则调用一次 agent 后重新读取槽位，agent 未写入时 Found 为 false。
// 槽位读取失败时不调用 agent，直接返回错误，避免把存储故障当作未执行。
func (r *Runner) Run(ctx context.Context, s Stage) (Result, error) {
	existing, ok, err := state.LoadOptional(ctx, r.store, s.OutputKey)
	if err != nil {
		r.log.Error("Run failed, stage = %s, load %s err = %v", s.Name, s.OutputKey, err)
		return Result{}, fmt.Errorf("stage %s: check cached output: %w", s.Name, err)
	}
	if ok {
		r.log.Info("--- Skipping %s (Found cached data) ---", s.Name)
		return Result{Content: existing, Found: true, Cached: true}, nil
	}

	r.log.Info("--- Running %s ---", s.Name)
	if err := s.Agent.Invoke(ctx, s.Message); err != nil {
		r.log.Error("Run failed, stage = %s, agent = %s, invoke err = %v", s.Name, s.Agent.Name(), err)
		return Result{}, fmt.Errorf("stage %s: invoke %s: %w", s.Name, s.Agent.Name(), err)
	}

	content, ok, err := state.LoadOptional(ctx, r.store, s.OutputKey)
	if err != nil {
		r.log.Error("Run failed, stage = %s, reload %s err = %v", s.Name, s.OutputKey, err)
		return Result{}, fmt.Errorf("stage %s: read output: %w", s.Name, err)
	}
	if !ok {
		r.log.Info("Run done, stage = %s wrote nothing to %s", s.Name, s.OutputKey)
	}
	return Result{Content: content, Found: ok}, nil
}
