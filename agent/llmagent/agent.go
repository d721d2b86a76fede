package llmagent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/relay-flow-go/agent/comm"
	"github.com/hildam/relay-flow-go/agent/stage"
	"github.com/hildam/relay-flow-go/repo/logger"
	"github.com/hildam/relay-flow-go/repo/state"
	"github.com/hildam/relay-flow-go/repo/template"
)

// Deps agent 共享的依赖
type Deps struct {
	Model     model.ToolCallingChatModel // 模型服务
	Store     state.Store                // 结果存储
	Templates *template.Loader           // 提示模板
	Logger    logger.Logger              // 日志
	Retry     RetryPolicy                // 模型调用重试策略
	MaxStep   int                        // react 最大步数
	MaxLimit  int                        // 单条工作消息的长度上限
}

// Config 单个 agent 的配置
type Config struct {
	Name       string          // agent 名
	PromptName string          // 系统提示模板名
	Tools      []tool.BaseTool // 可用工具，为空时直接调用模型
	OutputKey  string          // 运行结束后槽位仍为空时，把最终回复写入该槽位
}

// Agent 由模型驱动的 agent
type Agent struct {
	name       string
	promptName string
	outputKey  string

	model     model.BaseChatModel
	react     *react.Agent
	store     state.Store
	templates *template.Loader
	retry     RetryPolicy
	log       logger.Logger
}

// New 创建实例
func New(ctx context.Context, deps Deps, cfg Config) (*Agent, error) {
	if deps.Model == nil {
		return nil, errors.New("llmagent: model is required")
	}
	if cfg.OutputKey != "" && deps.Store == nil {
		return nil, errors.New("llmagent: store is required when output key is set")
	}

	a := &Agent{
		name:       cfg.Name,
		promptName: cfg.PromptName,
		outputKey:  cfg.OutputKey,
		model:      deps.Model,
		store:      deps.Store,
		templates:  deps.Templates,
		retry:      deps.Retry,
		log:        logger.OrNop(deps.Logger),
	}
	if a.retry.Attempts == 0 {
		a.retry = DefaultRetryPolicy()
	}
	if a.templates == nil {
		a.templates = template.NewLoader("")
	}

	if len(cfg.Tools) == 0 {
		return a, nil
	}

	maxStep := deps.MaxStep
	if maxStep <= 0 {
		maxStep = 20
	}

	// 创建react智能体
	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		MaxStep:               maxStep,                                       // 最大执行步骤数
		ToolCallingModel:      deps.Model,                                    // 工具调用模型
		ToolsConfig:           compose.ToolsNodeConfig{Tools: cfg.Tools},     // 工具配置
		MessageModifier:       comm.NewModifyInputFunc(deps.MaxLimit, a.log), // 消息长度限制处理器
		StreamToolCallChecker: comm.ToolCallChecker,                          // 流式工具调用检查器
	})
	if err != nil {
		a.log.Error("New failed, create react agent failed, agent = %s, err = %v", cfg.Name, err)
		return nil, err
	}
	a.react = reactAgent
	return a, nil
}

// Name agent 名
func (a *Agent) Name() string {
	return a.name
}

// Invoke 处理一条消息。模型调用遇到临时性错误时按策略重试
func (a *Agent) Invoke(ctx context.Context, message string) error {
	resp, err := Retry(ctx, a.retry, a.log, a.name, func(ctx context.Context) (*schema.Message, error) {
		// 每次尝试重新构造消息，react 的消息修改器会改写内容
		msgs, err := a.loadMsg(ctx, message)
		if err != nil {
			return nil, err
		}
		return a.generate(ctx, msgs)
	})
	if err != nil {
		a.log.Error("Invoke failed, agent = %s, err = %v", a.name, err)
		return fmt.Errorf("agent %s: %w", a.name, err)
	}
	a.log.Debug("Invoke debug, agent = %s, reply = %s", a.name, resp.Content)

	if a.outputKey == "" {
		return nil
	}

	// 工具已经写入结果时保留工具的版本
	_, ok, err := state.LoadOptional(ctx, a.store, a.outputKey)
	if err != nil {
		return fmt.Errorf("agent %s: %w", a.name, err)
	}
	if ok || resp.Content == "" {
		return nil
	}
	a.log.Info("%s", state.SaveStatus(ctx, a.store, a.outputKey, resp.Content))
	return nil
}

// generate 调用模型
func (a *Agent) generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	if a.react != nil {
		return a.react.Generate(ctx, msgs)
	}
	return a.model.Generate(ctx, msgs)
}

// loadMsg 构造系统提示与用户消息
func (a *Agent) loadMsg(ctx context.Context, message string) ([]*schema.Message, error) {
	sysPrompt, err := a.templates.Get(ctx, a.promptName)
	if err != nil {
		a.log.Error("loadMsg failed, GetPromptTemplate err = %+v, prompt name = %+v", err, a.promptName)
		return nil, err
	}

	// 创建Jinja2模板，包含系统提示词和用户输入占位符
	promptTemp := prompt.FromMessages(schema.Jinja2,
		schema.SystemMessage(sysPrompt),
		schema.MessagesPlaceholder("user_input", true),
	)

	variables := map[string]any{
		"agent_name":   a.name,                                   // agent 名
		"CURRENT_TIME": time.Now().Format("2006-01-02 15:04:05"), // 当前时间
		"user_input":   []*schema.Message{schema.UserMessage(message)},
	}
	return promptTemp.Format(ctx, variables)
}

var _ stage.Agent = (*Agent)(nil)
