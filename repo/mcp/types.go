package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// MCPTool MCP工具包装器
type MCPTool struct {
	cli         client.MCPClient      // MCP客户端
	toolName    string                // 工具名称
	toolDesc    string                // 工具描述
	inputSchema mcpgo.ToolInputSchema // 输入参数Schema
}

// Info 获取工具信息
func (t *MCPTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params, err := convertMCPSchemaToEinoParams(t.inputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema: %w", err)
	}

	return &schema.ToolInfo{
		Name:        t.toolName,
		Desc:        t.toolDesc,
		ParamsOneOf: params,
	}, nil
}

// InvokableRun 调用MCP工具。工具自身报告的错误作为文本返回给模型
func (t *MCPTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var paramsMap map[string]any
	if err := json.Unmarshal([]byte(argumentsInJSON), &paramsMap); err != nil {
		return "", fmt.Errorf("failed to unmarshal params: %w", err)
	}

	callReq := mcpgo.CallToolRequest{}
	callReq.Params.Name = t.toolName
	callReq.Params.Arguments = paramsMap

	resp, err := t.cli.CallTool(ctx, callReq)
	if err != nil {
		return "", fmt.Errorf("MCP tool call failed: %w", err)
	}

	text, err := renderContent(resp.Content)
	if err != nil {
		return "", err
	}
	if resp.IsError {
		if text == "" {
			text = "unknown error"
		}
		return "Error: " + text, nil
	}
	return text, nil
}

// renderContent 文本内容直接拼接，其他类型按 JSON 输出
func renderContent(contents []mcpgo.Content) (string, error) {
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		switch v := c.(type) {
		case mcpgo.TextContent:
			parts = append(parts, v.Text)
		case *mcpgo.TextContent:
			parts = append(parts, v.Text)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("failed to marshal response: %w", err)
			}
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, "\n"), nil
}
