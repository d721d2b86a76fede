package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	hconsts "github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
	"github.com/google/uuid"
	"github.com/hildam/relay-flow-go/agent"
	"github.com/hildam/relay-flow-go/entity/consts"
	"github.com/hildam/relay-flow-go/entity/model"
	"github.com/hildam/relay-flow-go/repo/callback"
	"github.com/hildam/relay-flow-go/repo/logger"
	"github.com/hildam/relay-flow-go/repo/state"
)

var (
	// ErrUnknownPipeline 未注册的流水线
	ErrUnknownPipeline = errors.New("unknown pipeline")
	// ErrEmptyQuery 请求为空
	ErrEmptyQuery = errors.New("query must not be empty")
)

// RunRequest 运行请求
type RunRequest struct {
	Query    string `json:"query"`     // 用户请求
	UserName string `json:"user_name"` // 用户名，舞蹈流水线使用
}

// PipelineFactory 为一次请求在给定存储上创建流水线，返回流水线与最终的用户请求
type PipelineFactory func(ctx context.Context, store state.Store, req RunRequest) (*agent.Pipeline, string, error)

// Settings 运行期设置，每次运行重新读取，配置热更新后对下一次运行生效
type Settings struct {
	MaxContextLength int // 阶段产出压缩长度
	ReportPreview    int // 事件与结果预览长度
}

// Server HTTP 服务，每次请求在全新的内存存储上运行流水线，不复用缓存结果
type Server struct {
	addr      string
	factories map[string]PipelineFactory
	log       logger.Logger
	settings  func() Settings
}

// NewServer 创建实例，settings 为空时使用零值设置
func NewServer(addr string, factories map[string]PipelineFactory, log logger.Logger, settings func() Settings) *Server {
	if settings == nil {
		settings = func() Settings { return Settings{} }
	}
	return &Server{
		addr:      addr,
		factories: factories,
		log:       logger.OrNop(log),
		settings:  settings,
	}
}

// Engine 注册路由
func (s *Server) Engine() *server.Hertz {
	h := server.Default(server.WithHostPorts(s.addr))
	h.GET("/healthz", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(hconsts.StatusOK, utils.H{"status": "ok"})
	})
	h.GET("/api/agents", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(hconsts.StatusOK, utils.H{"agents": consts.GetAgentNameList()})
	})
	h.POST("/api/pipelines/:name/runs", s.handleRun)
	return h
}

// Spin 启动服务并阻塞
func (s *Server) Spin() {
	s.log.Info("Server listening on %s", s.addr)
	s.Engine().Spin()
}

// run 一次已准备好的运行
type run struct {
	id       string
	pipeline *agent.Pipeline
	query    string
	store    state.Store
}

// prepare 校验请求并创建流水线
func (s *Server) prepare(ctx context.Context, name string, req RunRequest) (*run, error) {
	factory, ok := s.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, name)
	}
	store := state.NewMemoryStore()
	p, query, err := factory(ctx, store, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	return &run{id: uuid.NewString(), pipeline: p, query: query, store: store}, nil
}

// execute 运行流水线，阶段事件与最终结果写入 w
func (s *Server) execute(ctx context.Context, r *run, w callback.EventWriter) (*model.Report, error) {
	st := s.settings()
	cb := &callback.LoggerCallback{
		ID:      r.id,
		SSE:     w,
		Stages:  r.pipeline.Titles(),
		Preview: st.ReportPreview,
	}
	orch := agent.NewOrchestrator(r.store,
		agent.WithLogger(s.log),
		agent.WithMaxContextLength(st.MaxContextLength),
	)

	report, err := orch.Run(agent.WithRunID(ctx, r.id), r.pipeline, r.query, compose.WithCallbacks(cb))
	if err != nil {
		data, _ := json.Marshal(&model.StageEvent{RunID: r.id, ID: uuid.NewString(), Error: err.Error()})
		if werr := w.WriteEvent("", model.EventError, data); werr != nil {
			s.log.Error("execute failed, write error event err = %v", werr)
		}
		return nil, err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	if err := w.WriteEvent("", model.EventReport, data); err != nil {
		s.log.Error("execute failed, write report event err = %v", err)
		return report, err
	}
	return report, nil
}

// handleRun POST /api/pipelines/:name/runs
func (s *Server) handleRun(ctx context.Context, c *app.RequestContext) {
	var req RunRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(hconsts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	r, err := s.prepare(ctx, c.Param("name"), req)
	switch {
	case errors.Is(err, ErrUnknownPipeline):
		c.JSON(hconsts.StatusNotFound, utils.H{"error": err.Error()})
		return
	case errors.Is(err, ErrEmptyQuery):
		c.JSON(hconsts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	case err != nil:
		s.log.Error("handleRun failed, prepare err = %v", err)
		c.JSON(hconsts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	w := sse.NewWriter(c)
	defer w.Close()
	if _, err := s.execute(ctx, r, w); err != nil {
		s.log.Error("handleRun failed, pipeline = %s, run = %s, err = %v", r.pipeline.Name, r.id, err)
	}
}
