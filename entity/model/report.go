package model

import (
	"fmt"
	"strings"
)

const (
	NoDataPlaceholder = "(No data found)" // 槽位缺失时的固定占位文本
	readFailedFormat  = "(Read failed: %v)"
)

// Slot 一个状态槽位的快照
type Slot struct {
	Key     string `json:"key"`
	Content string `json:"content,omitempty"`
	Found   bool   `json:"found"`
	Err     error  `json:"-"` // 读取失败的原因，与未找到区分
}

// Placeholder 槽位不可用时渲染的文本
func (s Slot) Placeholder() string {
	if s.Err != nil {
		return fmt.Sprintf(readFailedFormat, s.Err)
	}
	return NoDataPlaceholder
}

// RenderSlots 按顺序渲染槽位，每个槽位一段，缺失的槽位也保留一段
func RenderSlots(slots []Slot) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		body := s.Content
		if !s.Found {
			body = s.Placeholder()
		}
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s\n", s.Key, body))
	}
	return strings.Join(parts, "\n")
}

// Report 流水线最终结果
type Report struct {
	Pipeline string         `json:"pipeline"`
	RunID    string         `json:"run_id"`
	Slots    []Slot         `json:"slots"`
	Stages   []StageOutcome `json:"stages"`
}

// String 渲染全部槽位
func (r *Report) String() string {
	return RenderSlots(r.Slots)
}

// Missing 返回缺失的槽位名
func (r *Report) Missing() []string {
	var missing []string
	for _, s := range r.Slots {
		if !s.Found {
			missing = append(missing, s.Key)
		}
	}
	return missing
}

// Preview 截取前 n 个字符，超出部分用省略号表示
func Preview(content string, n int) string {
	runes := []rune(content)
	if n <= 0 || len(runes) <= n {
		return content
	}
	return string(runes[:n]) + "..."
}

// Evaluation 评估结果
type Evaluation struct {
	Score    int    `json:"score"`    // 0-10 分
	Feedback string `json:"feedback"` // 详细反馈
}
