package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/hildam/relay-flow-go/entity/conf"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// defaultInitTimeout 初始化MCP服务的默认超时
const defaultInitTimeout = 30 * time.Second

// server 已连接的MCP服务
type server struct {
	name   string
	cli    client.MCPClient
	filter []string
}

// Toolbox 一组已连接的MCP服务
type Toolbox struct {
	servers []server
}

// Connect 按配置连接全部MCP服务，任一失败时关闭已建立的连接
func Connect(ctx context.Context, servers map[string]conf.MCPServerConfig) (*Toolbox, error) {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	tb := &Toolbox{}
	for _, name := range names {
		cfg := servers[name]
		cli, err := connect(ctx, name, cfg)
		if err != nil {
			_ = tb.Close()
			slog.Error("createMcpClients error, name = %+v, err = %+v", name, err)
			return nil, fmt.Errorf("failed to create MCP client for %s: %w", name, err)
		}
		tb.servers = append(tb.servers, server{name: name, cli: cli, filter: cfg.ToolFilter})
	}
	return tb, nil
}

// connect 创建并初始化单个MCP客户端
func connect(ctx context.Context, name string, cfg conf.MCPServerConfig) (client.MCPClient, error) {
	var (
		mcpClient client.MCPClient
		err       error
	)

	if cfg.URL != "" {
		slog.Debug("createMcpClients debug, load mcp sse client = %+v, url = %+v", name, cfg.URL)
		options := []transport.ClientOption{}
		if headers := parseHeaders(cfg.Headers); len(headers) > 0 {
			options = append(options, transport.WithHeaders(headers))
		}
		var sseClient *client.Client
		sseClient, err = client.NewSSEMCPClient(cfg.URL, options...)
		if err == nil {
			err = sseClient.Start(ctx)
			mcpClient = sseClient
		}
	} else {
		var env []string
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		slog.Debug("createMcpClients debug, load mcp stdio client = %+v, command = %+v, args = %+v", name, cfg.Command, cfg.Args)
		mcpClient, err = client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	}
	if err != nil {
		if mcpClient != nil {
			_ = mcpClient.Close()
		}
		return nil, err
	}

	timeout := defaultInitTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Debug("createMcpClients debug, initialize server, name = %+v", name)
	initRequest := mcpgo.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcpgo.Implementation{
		Name:    "relay-flow",
		Version: "0.1.0",
	}
	initRequest.Params.Capabilities = mcpgo.ClientCapabilities{}

	if _, err = mcpClient.Initialize(initCtx, initRequest); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return mcpClient, nil
}

// parseHeaders 解析 "Key: Value" 形式的请求头
func parseHeaders(raw []string) map[string]string {
	headers := make(map[string]string)
	for _, header := range raw {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}

// allowed 判断工具是否在过滤列表中，列表为空时全部允许
func allowed(filter []string, name string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == name {
			return true
		}
	}
	return false
}

// Tools 列出全部MCP工具
func (tb *Toolbox) Tools(ctx context.Context) ([]tool.BaseTool, error) {
	if tb == nil {
		return nil, nil
	}
	var allTools []tool.BaseTool

	for _, s := range tb.servers {
		slog.Debug("loadMCPTools debug, Loading tools from MCP server = %s", s.name)

		toolsResp, err := s.cli.ListTools(ctx, mcpgo.ListToolsRequest{})
		if err != nil {
			slog.Error("loadMCPTools failed, Error listing tools from %s = %v", s.name, err)
			continue
		}

		for _, mcpTool := range toolsResp.Tools {
			if !allowed(s.filter, mcpTool.Name) {
				continue
			}
			allTools = append(allTools, &MCPTool{
				cli:         s.cli,
				toolName:    mcpTool.Name,
				toolDesc:    mcpTool.Description,
				inputSchema: mcpTool.InputSchema,
			})
			slog.Debug("loadMCPTools debug, Added tool: %s", mcpTool.Name)
		}
	}

	slog.Debug("loadMCPTools debug, Total tools loaded: %d", len(allTools))
	return allTools, nil
}

// Close 关闭全部连接
func (tb *Toolbox) Close() error {
	if tb == nil {
		return nil
	}
	var firstErr error
	for _, s := range tb.servers {
		if err := s.cli.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	tb.servers = nil
	return firstErr
}

// convertMCPSchemaToEinoParams 将MCP的InputSchema转换为eino的ParamsOneOf
func convertMCPSchemaToEinoParams(inputSchema mcpgo.ToolInputSchema) (*schema.ParamsOneOf, error) {
	schemaBytes, err := json.Marshal(inputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input schema: %w", err)
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(schemaBytes, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to map: %w", err)
	}

	// 确保schema有type字段
	if _, hasType := schemaMap["type"]; !hasType {
		if _, hasAnyOf := schemaMap["anyOf"]; !hasAnyOf {
			schemaMap["type"] = "object"
		}
	}

	// 没有type的属性按字符串处理
	if properties, ok := schemaMap["properties"].(map[string]interface{}); ok {
		for _, propValue := range properties {
			if propMap, ok := propValue.(map[string]interface{}); ok {
				if _, hasType := propMap["type"]; !hasType {
					if _, hasAnyOf := propMap["anyOf"]; !hasAnyOf {
						propMap["type"] = "string"
					}
				}
			}
		}
	}

	fixedSchemaBytes, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fixed schema: %w", err)
	}

	var openAPISchema openapi3.Schema
	if err := json.Unmarshal(fixedSchemaBytes, &openAPISchema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to OpenAPI schema: %w", err)
	}
	return schema.NewParamsOneOfByOpenAPIV3(&openAPISchema), nil
}
