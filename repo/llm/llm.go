package llm

import (
	"context"
	"errors"

	openai3 "github.com/cloudwego/eino-ext/libs/acl/openai"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/getkin/kin-openapi/openapi3gen"
	"github.com/hildam/relay-flow-go/entity/conf"
	"github.com/hildam/relay-flow-go/entity/model"
)

// ErrMissingAPIKey 未配置模型密钥
var ErrMissingAPIKey = errors.New("model api key is not configured, set OPENAI_API_KEY or model.default_model.api_key")

// NewChatModel 创建Chat模型
func NewChatModel(ctx context.Context, m conf.Model) (*openai.ChatModel, error) {
	if m.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	llm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   m.ModelID,
		BaseURL: m.BaseURL,
		APIKey:  m.APIKey,
	})
	if err != nil {
		slog.Error("NewChatModel failed, err: %v", err)
		return nil, err
	}
	return llm, nil
}

// NewJudgeModel 创建评估模型，要求按评估结构返回 JSON
func NewJudgeModel(ctx context.Context, m conf.Model) (*openai.ChatModel, error) {
	if m.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	// 定义返回结构
	evalSchema, err := openapi3gen.NewSchemaRefForValue(&model.Evaluation{}, nil)
	if err != nil {
		slog.Error("NewJudgeModel failed, generate schema err: %v", err)
		return nil, err
	}

	llm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   m.ModelID,
		BaseURL: m.BaseURL,
		APIKey:  m.APIKey,
		// 评估模型响应格式
		ResponseFormat: &openai3.ChatCompletionResponseFormat{
			Type: openai3.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai3.ChatCompletionResponseFormatJSONSchema{
				Name:   "evaluation",
				Strict: false,
				Schema: evalSchema.Value,
			},
		},
	})
	if err != nil {
		slog.Error("NewJudgeModel failed, err: %v", err)
		return nil, err
	}
	return llm, nil
}
