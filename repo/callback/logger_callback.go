package callback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/hildam/relay-flow-go/entity/model"
)

// EventWriter 事件写入器，如 hertz 的 *sse.Writer
type EventWriter interface {
	WriteEvent(id, event string, data []byte) error
}

// LoggerCallback 阶段事件回调，只关注流水线的阶段节点
type LoggerCallback struct {
	callbacks.HandlerBuilder // 可以用 callbacks.HandlerBuilder 来辅助实现 callback

	ID      string            // 运行ID
	SSE     EventWriter       // SSE写入器，用于向客户端推送阶段事件
	Out     chan string       // 输出通道，用于异步传递事件文本
	Stages  map[string]string // 阶段节点名到展示名的映射，不在其中的节点被忽略
	Preview int               // 阶段产出预览长度
}

// title 返回阶段展示名，非阶段节点返回 false
func (cb *LoggerCallback) title(info *callbacks.RunInfo) (string, bool) {
	if info == nil {
		return "", false
	}
	t, ok := cb.Stages[info.Name]
	return t, ok
}

// pushF 推送事件到客户端
func (cb *LoggerCallback) pushF(ctx context.Context, event string, data *model.StageEvent) error {
	dataByte, err := json.Marshal(data)
	if err != nil {
		slog.Error("pushF failed, marshal data err = %+v, data = %+v", err, data)
		return err
	}
	// 通过SSE推送到客户端（如果SSE连接存在）
	if cb.SSE != nil {
		if err = cb.SSE.WriteEvent(data.ID, event, dataByte); err != nil {
			slog.Error("pushF failed, write sse event err = %+v, event = %s", err, event)
		}
	}
	// 通过输出通道异步传递事件文本（如果通道存在）
	if cb.Out != nil {
		cb.Out <- fmt.Sprintf("[%s] %s", event, data.Title)
	}
	return err
}

// OnStart 阶段开始
func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if title, ok := cb.title(info); ok {
		_ = cb.pushF(ctx, model.EventStageStart, &model.StageEvent{
			RunID: cb.ID,
			ID:    uuid.NewString(),
			Stage: info.Name,
			Title: title,
		})
	}
	return ctx
}

// OnEnd 阶段结束，输出为阶段压缩后的产出
func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	title, ok := cb.title(info)
	if !ok {
		return ctx
	}
	content, _ := output.(string)
	_ = cb.pushF(ctx, model.EventStageEnd, &model.StageEvent{
		RunID:   cb.ID,
		ID:      uuid.NewString(),
		Stage:   info.Name,
		Title:   title,
		Content: model.Preview(content, cb.Preview),
	})
	return ctx
}

// OnError 阶段出错
func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	title, ok := cb.title(info)
	if !ok {
		return ctx
	}
	slog.Error("OnError, stage = %s, err = %v", info.Name, err)
	_ = cb.pushF(ctx, model.EventStageError, &model.StageEvent{
		RunID: cb.ID,
		ID:    uuid.NewString(),
		Stage: info.Name,
		Title: title,
		Error: err.Error(),
	})
	return ctx
}

// OnEndWithStreamOutput 阶段节点不产生流式输出，只负责关闭流
func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

// OnStartWithStreamInput 只负责关闭流
func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}
