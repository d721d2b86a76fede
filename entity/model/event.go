package model

// 流水线事件类型
const (
	EventStageStart = "stage_start"
	EventStageEnd   = "stage_end"
	EventStageError = "stage_error"
	EventReport     = "report"
	EventError      = "error"
)

// StageEvent 推送给客户端的阶段事件
type StageEvent struct {
	RunID   string `json:"run_id"`            // 运行ID
	ID      string `json:"id"`                // 事件ID
	Stage   string `json:"stage"`             // 阶段节点名
	Title   string `json:"title,omitempty"`   // 阶段展示名
	Content string `json:"content,omitempty"` // 阶段产出预览
	Error   string `json:"error,omitempty"`   // 错误信息
}
