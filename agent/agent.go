package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/hildam/relay-flow-go/agent/comm"
	"github.com/hildam/relay-flow-go/agent/human"
	"github.com/hildam/relay-flow-go/agent/stage"
	"github.com/hildam/relay-flow-go/entity/consts"
	"github.com/hildam/relay-flow-go/entity/model"
	"github.com/hildam/relay-flow-go/repo/logger"
	"github.com/hildam/relay-flow-go/repo/state"
)

// StageInput 构造阶段消息所需的输入
type StageInput struct {
	Query    string            // 用户请求
	Upstream map[string]string // 上游阶段压缩后的产出，按输出槽位索引
	Feedback string            // 上一阶段结束后收集的人工反馈
}

// StageSpec 阶段定义
type StageSpec struct {
	Name        string                     // 图节点名
	Title       string                     // 展示名
	Agent       stage.Agent                // 执行的 agent
	Sender      string                     // 消息发送者
	Receiver    string                     // 消息接收者
	OutputKey   string                     // 输出槽位
	Placeholder string                     // 输出缺失时传给下游的文本
	Compose     func(in StageInput) string // 构造消息内容
	Metadata    map[string]any             // 消息元数据
	AskFeedback bool                       // 结束后是否征求人工反馈
}

// title 展示名，未设置时使用节点名
func (s StageSpec) title() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// Pipeline 固定顺序的阶段序列
type Pipeline struct {
	Name       string      // 流水线名
	GraphName  string      // 编译后的图名
	Stages     []StageSpec // 按执行顺序排列
	ReportKeys []string    // 最终汇总的槽位
	EvalKeys   []string    // 交给评委评估的槽位
}

// Titles 节点名到展示名的映射
func (p *Pipeline) Titles() map[string]string {
	titles := make(map[string]string, len(p.Stages))
	for _, s := range p.Stages {
		titles[s.Name] = s.title()
	}
	return titles
}

// Validate 校验流水线定义
func (p *Pipeline) Validate() error {
	if len(p.Stages) == 0 {
		return errors.New("pipeline has no stages")
	}
	seen := map[string]bool{consts.NodeLoad: true, consts.NodeReport: true}
	for i, s := range p.Stages {
		switch {
		case s.Name == "":
			return fmt.Errorf("stage %d has no name", i)
		case seen[s.Name]:
			return fmt.Errorf("stage name %q is reserved or duplicated", s.Name)
		case s.Agent == nil:
			return fmt.Errorf("stage %s has no agent", s.Name)
		case s.OutputKey == "":
			return fmt.Errorf("stage %s has no output key", s.Name)
		case s.Compose == nil:
			return fmt.Errorf("stage %s has no message composer", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// AppendFeedback 把人工反馈附加到消息内容末尾
func AppendFeedback(content, feedback string) string {
	if feedback == "" {
		return content
	}
	return content + "\n\nUSER FEEDBACK:\n" + feedback
}

// Orchestrator 流水线编排者
type Orchestrator struct {
	store      state.Store
	runner     *stage.Runner
	feedback   human.Provider
	log        logger.Logger
	maxContext int
}

// Option 编排者可选配置
type Option func(*Orchestrator)

// WithFeedback 设置人工反馈来源
func WithFeedback(p human.Provider) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.feedback = p
		}
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		o.log = logger.OrNop(l)
	}
}

// WithMaxContextLength 设置注入下游的上下文长度上限
func WithMaxContextLength(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxContext = n
		}
	}
}

// NewOrchestrator 创建实例
func NewOrchestrator(store state.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		feedback:   human.None(),
		log:        logger.Nop(),
		maxContext: consts.DefaultMaxContextLength,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.runner = stage.NewRunner(store, o.log)
	return o
}

type runIDKey struct{}

// WithRunID 指定本次运行的ID，未指定时自动生成
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// runIDFrom 读取运行ID
func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Build 构建流水线图：START → load → 各阶段 → report → END
func (o *Orchestrator) Build(ctx context.Context, p *Pipeline) (compose.Runnable[string, *model.Report], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// 初始化状态
	stateGenFunc := func(ctx context.Context) *model.PipelineState {
		return &model.PipelineState{
			Pipeline:         p.Name,
			RunID:            runIDFrom(ctx),
			MaxContextLength: o.maxContext,
			Compacted:        map[string]string{},
		}
	}

	graph := compose.NewGraph[string, *model.Report](
		compose.WithGenLocalState(stateGenFunc),
	)

	// 加载节点记录用户请求
	if err := graph.AddLambdaNode(consts.NodeLoad, compose.InvokableLambda(loadQuery),
		compose.WithNodeName(consts.NodeLoad)); err != nil {
		return nil, err
	}

	// 按顺序串联阶段节点
	prev := consts.NodeLoad
	for i, spec := range p.Stages {
		next := ""
		if i+1 < len(p.Stages) {
			next = p.Stages[i+1].title()
		}
		if err := graph.AddLambdaNode(spec.Name, compose.InvokableLambda(o.stageNode(spec, next)),
			compose.WithNodeName(spec.Name)); err != nil {
			return nil, err
		}
		if err := graph.AddEdge(prev, spec.Name); err != nil {
			return nil, err
		}
		prev = spec.Name
	}

	// 汇总节点读取全部结果槽位
	if err := graph.AddLambdaNode(consts.NodeReport, compose.InvokableLambda(o.reportNode(p)),
		compose.WithNodeName(consts.NodeReport)); err != nil {
		return nil, err
	}

	for _, e := range [][2]string{
		{compose.START, consts.NodeLoad},
		{prev, consts.NodeReport},
		{consts.NodeReport, compose.END},
	} {
		if err := graph.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	runnable, err := graph.Compile(ctx, compose.WithGraphName(p.GraphName))
	if err != nil {
		o.log.Error("Build failed, pipeline = %s, err = %v", p.Name, err)
		return nil, err
	}
	return runnable, nil
}

// Run 构建并执行流水线
func (o *Orchestrator) Run(ctx context.Context, p *Pipeline, query string, opts ...compose.Option) (*model.Report, error) {
	runnable, err := o.Build(ctx, p)
	if err != nil {
		return nil, err
	}
	o.log.Info("Starting pipeline %s", p.Name)
	report, err := runnable.Invoke(ctx, query, opts...)
	if err != nil {
		o.log.Error("Run failed, pipeline = %s, err = %v", p.Name, err)
		return nil, err
	}
	o.log.Info("Done.")
	return report, nil
}

// loadQuery 保存用户请求，作为第一个阶段的输入
func loadQuery(ctx context.Context, query string) (string, error) {
	err := compose.ProcessState[*model.PipelineState](ctx, func(_ context.Context, st *model.PipelineState) error {
		st.Query = query
		return nil
	})
	return query, err
}

// stageNode 生成阶段节点：构造消息 → 执行阶段 → 压缩产出 → 征求反馈
func (o *Orchestrator) stageNode(spec StageSpec, next string) func(ctx context.Context, input string) (string, error) {
	return func(ctx context.Context, _ string) (string, error) {
		var (
			in     StageInput
			maxLen int
		)
		err := compose.ProcessState[*model.PipelineState](ctx, func(_ context.Context, st *model.PipelineState) error {
			in = StageInput{
				Query:    st.Query,
				Upstream: maps.Clone(st.Compacted),
				Feedback: st.Feedback,
			}
			maxLen = st.MaxContextLength
			return nil
		})
		if err != nil {
			o.log.Error("stageNode failed, stage = %s, read state err = %v", spec.Name, err)
			return "", fmt.Errorf("stage %s: read state: %w", spec.Name, err)
		}

		msg, err := model.FormatMessage(spec.Sender, spec.Receiver, spec.Compose(in), spec.Metadata)
		if err != nil {
			return "", fmt.Errorf("stage %s: build message: %w", spec.Name, err)
		}

		res, err := o.runner.Run(ctx, stage.Stage{
			Name:      spec.title(),
			Agent:     spec.Agent,
			Message:   msg,
			OutputKey: spec.OutputKey,
		})
		if err != nil {
			return "", err
		}

		// 缺失的产出以占位文本继续传给下游
		output := res.Content
		if !res.Found {
			o.log.Error("stageNode warn, stage = %s produced no %s, using placeholder", spec.Name, spec.OutputKey)
			output = spec.Placeholder
		}
		// 每个产物只压缩一次，下游复用同一份结果
		compacted := comm.Compact(output, maxLen)

		feedback := ""
		if spec.AskFeedback && next != "" {
			feedback, err = o.feedback.Collect(ctx, human.Request{Stage: spec.title(), Next: next, Output: output})
			if err != nil {
				return "", fmt.Errorf("stage %s: collect feedback: %w", spec.Name, err)
			}
		}

		err = compose.ProcessState[*model.PipelineState](ctx, func(_ context.Context, st *model.PipelineState) error {
			st.Compacted[spec.OutputKey] = compacted
			st.Feedback = feedback
			st.Outcomes = append(st.Outcomes, model.StageOutcome{
				Name:      spec.Name,
				OutputKey: spec.OutputKey,
				Cached:    res.Cached,
				Found:     res.Found,
			})
			return nil
		})
		return compacted, err
	}
}

// reportNode 汇总节点
func (o *Orchestrator) reportNode(p *Pipeline) func(ctx context.Context, input string) (*model.Report, error) {
	return func(ctx context.Context, _ string) (*model.Report, error) {
		report := &model.Report{
			Pipeline: p.Name,
			Slots:    state.Collect(ctx, o.store, p.ReportKeys),
		}
		err := compose.ProcessState[*model.PipelineState](ctx, func(_ context.Context, st *model.PipelineState) error {
			report.RunID = st.RunID
			report.Stages = append(report.Stages, st.Outcomes...)
			return nil
		})
		return report, err
	}
}

// LogReport 记录结果预览
func LogReport(log logger.Logger, report *model.Report, preview int) {
	log = logger.OrNop(log)
	log.Info("=== RESULTS ===")
	for _, s := range report.Slots {
		if !s.Found {
			log.Error("%s missing", s.Key)
			continue
		}
		log.Info("%s:\n%s", s.Key, model.Preview(s.Content, preview))
	}
}
