package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/relay-flow-go/agent/comm"
	"github.com/hildam/relay-flow-go/agent/llmagent"
	"github.com/hildam/relay-flow-go/entity/consts"
	entity "github.com/hildam/relay-flow-go/entity/model"
	"github.com/hildam/relay-flow-go/repo/logger"
	"github.com/hildam/relay-flow-go/repo/state"
	"github.com/hildam/relay-flow-go/repo/template"
)

var (
	// ErrMissingOutputs 待评估的结果不完整
	ErrMissingOutputs = errors.New("output slots not found, run the pipeline first")
	// ErrUnparsable 评估回复无法解析
	ErrUnparsable = errors.New("evaluation reply is not parsable")
)

var (
	scorePattern    = regexp.MustCompile(`(?i)score\s*:\s*\[?(\d+)`)
	feedbackPattern = regexp.MustCompile(`(?is)feedback\s*:\s*(.*)`)
)

// Judge 以模型为评委评估流水线产出
type Judge struct {
	model     model.BaseChatModel
	store     state.Store
	templates *template.Loader
	retry     llmagent.RetryPolicy
	log       logger.Logger
}

// New 创建实例
func New(m model.BaseChatModel, store state.Store, templates *template.Loader, retry llmagent.RetryPolicy, log logger.Logger) *Judge {
	if templates == nil {
		templates = template.NewLoader("")
	}
	if retry.Attempts == 0 {
		retry = llmagent.DefaultRetryPolicy()
	}
	return &Judge{
		model:     m,
		store:     store,
		templates: templates,
		retry:     retry,
		log:       logger.OrNop(log),
	}
}

// Evaluate 读取结果槽位并请求评分，任一槽位缺失时返回 ErrMissingOutputs
func (j *Judge) Evaluate(ctx context.Context, keys []string) (*entity.Evaluation, error) {
	slots := state.Collect(ctx, j.store, keys)
	var missing []string
	for _, s := range slots {
		if s.Err != nil {
			return nil, s.Err
		}
		if !s.Found {
			missing = append(missing, s.Key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingOutputs, strings.Join(missing, ", "))
	}

	msgs, err := j.loadMsg(ctx, slots)
	if err != nil {
		return nil, err
	}

	j.log.Info("Sending evaluation request to LLM")
	resp, err := llmagent.Retry(ctx, j.retry, j.log, consts.JudgeAgent, func(ctx context.Context) (*schema.Message, error) {
		return j.model.Generate(ctx, msgs)
	})
	if err != nil {
		j.log.Error("Evaluate failed, generate err = %v", err)
		return nil, err
	}
	return ParseEvaluation(resp.Content)
}

// loadMsg 构造评估消息，每个槽位截断到固定长度
func (j *Judge) loadMsg(ctx context.Context, slots []entity.Slot) ([]*schema.Message, error) {
	sysPrompt, err := j.templates.Get(ctx, "judge")
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("--- DATA START ---\n")
	for _, s := range slots {
		fmt.Fprintf(&sb, "%s:\n%s\n\n", Label(s.Key), comm.Compact(s.Content, consts.JudgeContextLength))
	}
	sb.WriteString("--- DATA END ---")

	promptTemp := prompt.FromMessages(schema.Jinja2,
		schema.SystemMessage(sysPrompt),
		schema.MessagesPlaceholder("user_input", true),
	)
	return promptTemp.Format(ctx, map[string]any{
		"user_input": []*schema.Message{schema.UserMessage(sb.String())},
	})
}

// Label 槽位名转为标题，如 opportunities_found → OPPORTUNITIES FOUND
func Label(key string) string {
	key = strings.TrimSuffix(key, consts.DefaultSlotExtension)
	return strings.ToUpper(strings.ReplaceAll(key, "_", " "))
}

// ParseEvaluation 解析评估回复，优先按 JSON 解析，失败时按 "Score: / Feedback:" 文本解析
func ParseEvaluation(text string) (*entity.Evaluation, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var eval entity.Evaluation
	if err := json.Unmarshal([]byte(body), &eval); err == nil {
		return checkScore(&eval)
	}

	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnparsable, entity.Preview(text, 200))
	}
	score, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	eval = entity.Evaluation{Score: score}
	if f := feedbackPattern.FindStringSubmatch(text); f != nil {
		eval.Feedback = strings.TrimSpace(f[1])
	}
	return checkScore(&eval)
}

func checkScore(eval *entity.Evaluation) (*entity.Evaluation, error) {
	if eval.Score < 0 || eval.Score > 10 {
		return nil, fmt.Errorf("%w: score %d out of range", ErrUnparsable, eval.Score)
	}
	return eval, nil
}
