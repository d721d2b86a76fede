package logger

import (
	"github.com/HildaM/logs/slog"
)

// Logger 组件日志接口，由调用方在构造时注入
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// slogLogger 转发到全局 slog 文件日志
type slogLogger struct {
	prefix string
}

// Default 返回写入全局日志文件的实例
func Default() Logger {
	return &slogLogger{}
}

// Named 返回带组件前缀的实例
func Named(name string) Logger {
	return &slogLogger{prefix: "[" + name + "] "}
}

func (l *slogLogger) Debug(format string, args ...any) {
	slog.Debug(l.prefix+format, args...)
}

func (l *slogLogger) Info(format string, args ...any) {
	slog.Info(l.prefix+format, args...)
}

func (l *slogLogger) Error(format string, args ...any) {
	slog.Error(l.prefix+format, args...)
}

// nopLogger 丢弃所有日志
type nopLogger struct{}

// Nop 返回不输出的实例，用于测试
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// OrNop 为空时返回 Nop
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
