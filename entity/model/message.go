package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyParticipant 发送者或接收者为空
	ErrEmptyParticipant = errors.New("message sender and receiver must be non-empty")
	// ErrNestedMetadata 元数据不是扁平映射
	ErrNestedMetadata = errors.New("message metadata must be a flat mapping")
	// ErrMalformedMessage 消息文本无法解析为固定的四个字段
	ErrMalformedMessage = errors.New("malformed agent message")
)

// envelopeFields 信封固定字段，顺序即序列化顺序
var envelopeFields = []string{"sender", "receiver", "content", "metadata"}

// Message Agent 之间传递的消息信封
type Message struct {
	Sender   string         `json:"sender"`
	Receiver string         `json:"receiver"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"` // 为空时序列化为 null，保证字段集合固定
}

// NewMessage 创建消息，校验发送者、接收者与元数据
func NewMessage(sender, receiver, content string, metadata map[string]any) (*Message, error) {
	msg := &Message{
		Sender:   sender,
		Receiver: receiver,
		Content:  content,
		Metadata: metadata,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Validate 校验消息不变量
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Sender) == "" || strings.TrimSpace(m.Receiver) == "" {
		return ErrEmptyParticipant
	}
	for k, v := range m.Metadata {
		if !isScalar(v) {
			return fmt.Errorf("%w: key %q holds %T", ErrNestedMetadata, k, v)
		}
	}
	return nil
}

// Format 序列化为带缩进的 JSON 文本
func (m *Message) Format() (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("format message failed: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// FormatMessage 创建并序列化一条消息
func FormatMessage(sender, receiver, content string, metadata map[string]any) (string, error) {
	msg, err := NewMessage(sender, receiver, content, metadata)
	if err != nil {
		return "", err
	}
	return msg.Format()
}

// ParseMessage 解析 FormatMessage 的输出
func ParseMessage(text string) (*Message, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(fields) != len(envelopeFields) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedMessage, len(envelopeFields), len(fields))
	}
	for _, name := range envelopeFields {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformedMessage, name)
		}
	}

	msg := &Message{}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"sender", &msg.Sender},
		{"receiver", &msg.Receiver},
		{"content", &msg.Content},
	} {
		// 文本字段必须是字符串，null 不会被当作空串
		if bytes.Equal(bytes.TrimSpace(fields[f.name]), []byte("null")) {
			return nil, fmt.Errorf("%w: field %q is null", ErrMalformedMessage, f.name)
		}
		if err := json.Unmarshal(fields[f.name], f.dst); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedMessage, f.name, err)
		}
	}
	metadata, err := parseMetadata(fields["metadata"])
	if err != nil {
		return nil, fmt.Errorf("%w: field \"metadata\": %v", ErrMalformedMessage, err)
	}
	msg.Metadata = metadata

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// parseMetadata 解析元数据，整数还原为 int64，其余数字为 float64
func parseMetadata(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var metadata map[string]any
	if err := dec.Decode(&metadata); err != nil {
		return nil, err
	}
	for k, v := range metadata {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			metadata[k] = i
			continue
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		metadata[k] = f
	}
	return metadata, nil
}

// isScalar 判断元数据取值是否为标量
func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
