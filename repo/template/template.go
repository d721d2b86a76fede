package template

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/HildaM/logs/slog"
)

//go:embed prompts/*.md
var builtin embed.FS

// Loader 提示模板加载器，优先读取目录中的同名文件，不存在时回退到内置模板
type Loader struct {
	dir string
}

// NewLoader 创建实例，dir 为空时只使用内置模板
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Get 加载并返回一个提示模板
func (l *Loader) Get(ctx context.Context, promptName string) (string, error) {
	fileName := fmt.Sprintf("%s.md", promptName)

	if l != nil && l.dir != "" {
		content, err := os.ReadFile(filepath.Join(l.dir, fileName))
		if err == nil {
			return string(content), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			msg := fmt.Errorf("GetPromptTemplate failed, read template file, err: %w", err)
			slog.Error(msg.Error())
			return "", msg
		}
	}

	content, err := builtin.ReadFile("prompts/" + fileName)
	if err != nil {
		msg := fmt.Errorf("GetPromptTemplate failed, template %s not found, err: %w", promptName, err)
		slog.Error(msg.Error())
		return "", msg
	}
	return string(content), nil
}

// GetPromptTemplate 从当前目录的 prompts 下加载提示模板
func GetPromptTemplate(ctx context.Context, promptName string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		msg := fmt.Errorf("GetPromptTemplate failed, get current working directory, err: %w", err)
		slog.Error(msg.Error())
		return "", msg
	}
	return NewLoader(filepath.Join(dir, "prompts")).Get(ctx, promptName)
}
