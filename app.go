package main

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/hildam/relay-flow-go/agent"
	"github.com/hildam/relay-flow-go/agent/code"
	"github.com/hildam/relay-flow-go/agent/dance"
	"github.com/hildam/relay-flow-go/agent/judge"
	"github.com/hildam/relay-flow-go/agent/llmagent"
	"github.com/hildam/relay-flow-go/api"
	"github.com/hildam/relay-flow-go/entity/conf"
	"github.com/hildam/relay-flow-go/entity/consts"
	"github.com/hildam/relay-flow-go/repo/llm"
	"github.com/hildam/relay-flow-go/repo/logger"
	"github.com/hildam/relay-flow-go/repo/mcp"
	"github.com/hildam/relay-flow-go/repo/state"
	"github.com/hildam/relay-flow-go/repo/template"
)

// application 进程级依赖。cfg 是启动时的配置，只用于建立连接；
// 运行期设置在每次运行时从 conf.GetCfg 读取，配置热更新后对下一次运行生效
type application struct {
	cfg     *conf.AppConfig
	store   state.Store
	toolbox *mcp.Toolbox
	search  []tool.BaseTool
	deps    llmagent.Deps
	log     logger.Logger
}

// setup 初始化配置、存储与日志
func setup(ctx context.Context, path string) (*application, error) {
	if err := conf.Init(path); err != nil {
		return nil, err
	}
	cfg := conf.GetCfg()

	store, err := state.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	return &application{
		cfg:   cfg,
		store: store,
		log:   logger.Default(),
		deps: llmagent.Deps{
			Store:  store,
			Logger: logger.Named("agent"),
		},
	}, nil
}

// agentDeps 按给定配置补全 agent 依赖中的可热更新部分
func agentDeps(cfg *conf.AppConfig, base llmagent.Deps) llmagent.Deps {
	base.Templates = template.NewLoader(cfg.Setting.PromptDir)
	base.Retry = llmagent.RetryPolicyFromConf(cfg.Retry)
	base.MaxStep = cfg.Setting.AgentMaxStep
	base.MaxLimit = cfg.Setting.MaxLimitToken
	return base
}

// settings 当前配置中的运行期设置
func settings() api.Settings {
	cfg := conf.GetCfg()
	return api.Settings{
		MaxContextLength: cfg.Setting.MaxContextLength,
		ReportPreview:    cfg.Setting.ReportPreview,
	}
}

// connectModel 创建对话模型并连接MCP工具
func (a *application) connectModel(ctx context.Context) error {
	chatModel, err := llm.NewChatModel(ctx, a.cfg.Model.DefaultModel)
	if err != nil {
		return err
	}
	a.deps.Model = chatModel

	if len(a.cfg.MCP.Servers) == 0 {
		return nil
	}
	a.toolbox, err = mcp.Connect(ctx, a.cfg.MCP.Servers)
	if err != nil {
		return err
	}
	a.search, err = a.toolbox.Tools(ctx)
	return err
}

// buildPipeline 在给定存储上创建流水线，返回流水线与最终的用户请求
func (a *application) buildPipeline(ctx context.Context, store state.Store, name string, req api.RunRequest) (*agent.Pipeline, string, error) {
	deps := agentDeps(conf.GetCfg(), a.deps)
	deps.Store = store

	switch name {
	case consts.DancePipeline:
		agents, err := dance.NewAgents(ctx, deps, a.search)
		if err != nil {
			return nil, "", err
		}
		profile, err := dance.LoadProfile(ctx, store, req.UserName)
		if err != nil {
			return nil, "", err
		}
		a.log.Info("Loaded Memory Bank.")
		query := req.Query
		if query == "" {
			query = dance.Query(profile.UserName)
		}
		return dance.NewPipeline(agents, profile), query, nil

	case consts.CodePipeline:
		agents, err := code.NewAgents(ctx, deps)
		if err != nil {
			return nil, "", err
		}
		return code.NewPipeline(agents), req.Query, nil
	}
	return nil, "", fmt.Errorf("%w: %s", api.ErrUnknownPipeline, name)
}

// factories HTTP 服务使用的流水线工厂
func (a *application) factories() map[string]api.PipelineFactory {
	out := map[string]api.PipelineFactory{}
	for _, name := range []string{consts.DancePipeline, consts.CodePipeline} {
		name := name
		out[name] = func(ctx context.Context, store state.Store, req api.RunRequest) (*agent.Pipeline, string, error) {
			return a.buildPipeline(ctx, store, name, req)
		}
	}
	return out
}

// evalKeys 流水线交给评委的槽位
func evalKeys(name string) ([]string, error) {
	switch name {
	case consts.DancePipeline:
		return dance.NewPipeline(dance.Agents{}, dance.Profile{}).EvalKeys, nil
	case consts.CodePipeline:
		return code.NewPipeline(code.Agents{}).EvalKeys, nil
	}
	return nil, fmt.Errorf("%w: %s", api.ErrUnknownPipeline, name)
}

// newJudge 创建评委
func (a *application) newJudge(ctx context.Context) (*judge.Judge, error) {
	judgeModel, err := llm.NewJudgeModel(ctx, a.cfg.Model.JudgeModel)
	if err != nil {
		return nil, err
	}
	deps := agentDeps(conf.GetCfg(), a.deps)
	return judge.New(judgeModel, a.store, deps.Templates, deps.Retry, logger.Named("judge")), nil
}

// close 释放连接
func (a *application) close() {
	if err := a.toolbox.Close(); err != nil {
		a.log.Error("close failed, mcp err = %v", err)
	}
	if err := state.Close(a.store); err != nil {
		a.log.Error("close failed, store err = %v", err)
	}
}
