package comm

import (
	"context"
	"io"

	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/relay-flow-go/repo/logger"
)

// NewModifyInputFunc 创建输入消息修改函数，限制 agent 工作消息的长度
func NewModifyInputFunc(maxLimit int, log logger.Logger) react.MessageModifier {
	log = logger.OrNop(log)
	return func(ctx context.Context, inputList []*schema.Message) []*schema.Message {
		sum := 0
		for _, input := range inputList {
			if input == nil {
				log.Debug("ModifyInputFunc debug, input is nil")
				continue
			}

			compacted := Compact(input.Content, maxLimit)
			if len(compacted) != len(input.Content) {
				log.Debug("ModifyInputFunc debug, input content length is %d, max limit is %d", len(input.Content), maxLimit)
				input.Content = compacted
			}
			sum += len(input.Content)
		}

		log.Debug("ModifyInputFunc debug, input content sum length is %d", sum)
		return inputList
	}
}

// ToolCallChecker 工具调用检查函数
func ToolCallChecker(ctx context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()

	// 遍历流式响应中的所有消息
	for {
		msg, err := sr.Recv()
		if err == io.EOF {
			// 流结束，未发现工具调用
			return false, nil
		}
		if err != nil {
			return false, err
		}

		// 检查当前消息是否包含工具调用
		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}
