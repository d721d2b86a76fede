package model

// StageOutcome 单个阶段的执行结果
type StageOutcome struct {
	Name      string `json:"name"`       // 阶段名
	OutputKey string `json:"output_key"` // 输出槽位
	Cached    bool   `json:"cached"`     // 是否命中缓存而跳过
	Found     bool   `json:"found"`      // 执行后槽位是否有内容
}

// PipelineState 流水线图的本地状态
type PipelineState struct {
	// 用户输入的请求
	Query string `json:"query,omitempty"`

	// 阶段间共享变量
	Compacted map[string]string `json:"compacted,omitempty"` // 按输出槽位保存的压缩后上下文，每个产物只压缩一次
	Feedback  string            `json:"feedback,omitempty"`  // 待注入下一阶段的人工反馈
	Outcomes  []StageOutcome    `json:"outcomes,omitempty"`  // 已执行阶段

	// 全局配置变量
	Pipeline         string `json:"pipeline"`
	RunID            string `json:"run_id"`
	MaxContextLength int    `json:"max_context_length"`
}
