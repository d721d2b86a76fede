package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/relay-flow-go/repo/logger"
	"github.com/hildam/relay-flow-go/repo/state"
)

const (
	SaveResultsName      = "save_results"
	LoadResultsName      = "load_results"
	DraftApplicationName = "draft_application"
)

// saveResults 把内容写入结果槽位
type saveResults struct {
	store state.Store
	log   logger.Logger
}

// NewSaveResults 创建 save_results 工具
func NewSaveResults(store state.Store, log logger.Logger) tool.InvokableTool {
	return &saveResults{store: store, log: logger.OrNop(log)}
}

func (t *saveResults) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: SaveResultsName,
		Desc: "Save content to a named results file so later agents can read it.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"filename": {Type: schema.String, Desc: "File name, e.g. opportunities_found.txt", Required: true},
			"content":  {Type: schema.String, Desc: "Full content to save", Required: true},
		}),
	}, nil
}

func (t *saveResults) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		t.log.Error("save_results failed, invalid arguments = %s, err = %v", argumentsInJSON, err)
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}
	status := state.SaveStatus(ctx, t.store, args.Filename, args.Content)
	t.log.Info("%s", status)
	return status, nil
}

// loadResults 读取结果槽位
type loadResults struct {
	store state.Store
}

// NewLoadResults 创建 load_results 工具
func NewLoadResults(store state.Store) tool.InvokableTool {
	return &loadResults{store: store}
}

func (t *loadResults) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: LoadResultsName,
		Desc: "Load the content of a results file saved earlier.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"filename": {Type: schema.String, Desc: "File name, e.g. dancers_found.txt", Required: true},
		}),
	}, nil
}

func (t *loadResults) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}
	content, ok, err := state.LoadOptional(ctx, t.store, args.Filename)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if !ok {
		return fmt.Sprintf("No data found for %s", args.Filename), nil
	}
	return content, nil
}

// draftApplication 生成申请草稿
type draftApplication struct {
	log logger.Logger
}

// NewDraftApplication 创建 draft_application 工具
func NewDraftApplication(log logger.Logger) tool.InvokableTool {
	return &draftApplication{log: logger.OrNop(log)}
}

func (t *draftApplication) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: DraftApplicationName,
		Desc: "Draft an application letter for a dance opportunity on behalf of a dancer.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"opportunity_url":   {Type: schema.String, Desc: "Link to the opportunity", Required: true},
			"opportunity_name":  {Type: schema.String, Desc: "Name of the festival, venue or event", Required: true},
			"dancer_name":       {Type: schema.String, Desc: "Name of the applicant", Required: true},
			"dancer_background": {Type: schema.String, Desc: "Short artist biography", Required: true},
		}),
	}, nil
}

// Application 申请草稿参数
type Application struct {
	OpportunityURL   string `json:"opportunity_url"`
	OpportunityName  string `json:"opportunity_name"`
	DancerName       string `json:"dancer_name"`
	DancerBackground string `json:"dancer_background"`
}

func (t *draftApplication) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var app Application
	if err := json.Unmarshal([]byte(argumentsInJSON), &app); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}
	t.log.Info("[APP] Drafting for %s -> %s", app.DancerName, app.OpportunityName)
	return app.Draft(), nil
}

// Draft 渲染申请信
func (a Application) Draft() string {
	return fmt.Sprintf(`
APPLICATION DRAFT
-----------------
To: %[1]s
URL: %[2]s
From: %[3]s

Dear Selection Committee,

I am writing to express my strong interest in performing at %[1]s.

About the Artist:
%[4]s

I would be honored to be considered for this performance and look forward to your response.

Sincerely,
%[3]s

`, a.OpportunityName, a.OpportunityURL, a.DancerName, a.DancerBackground)
}

// Results 结果读写工具
func Results(store state.Store, log logger.Logger) []tool.BaseTool {
	return []tool.BaseTool{NewSaveResults(store, log), NewLoadResults(store)}
}
