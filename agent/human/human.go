package human

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hildam/relay-flow-go/entity/model"
)

// Request 一次人工反馈请求
type Request struct {
	Stage  string // 刚完成的阶段
	Next   string // 下一阶段，为空表示没有后续阶段
	Output string // 刚完成阶段的产出
}

// Provider 人工反馈来源，返回空字符串表示没有反馈、按原计划继续
type Provider interface {
	Collect(ctx context.Context, req Request) (string, error)
}

// none 不收集反馈
type none struct{}

// None 返回总是没有反馈的实例，用于非交互模式
func None() Provider {
	return none{}
}

func (none) Collect(context.Context, Request) (string, error) {
	return "", nil
}

// Scripted 按顺序返回预设反馈，用尽后返回空
type Scripted struct {
	mu       sync.Mutex
	answers  []string
	Requests []Request // 收到的请求
}

// NewScripted 创建实例
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Collect(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if len(s.answers) == 0 {
		return "", nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Console 终端交互，阻塞读取一行输入
type Console struct {
	in      *bufio.Reader
	out     io.Writer
	preview int // 打印产出预览的长度，0 表示不打印

	once  sync.Once
	lines chan line // 唯一的读取协程逐行送入
}

// line 读到的一行输入
type line struct {
	text string
	err  error
}

// NewConsole 创建实例
func NewConsole(in io.Reader, out io.Writer, preview int) *Console {
	return &Console{
		in:      bufio.NewReader(in),
		out:     out,
		preview: preview,
	}
}

// Collect 打印阶段完成提示并读取反馈
func (c *Console) Collect(ctx context.Context, req Request) (string, error) {
	bar := strings.Repeat("=", 40)
	fmt.Fprintf(c.out, "\n%s\n⏸️  [%s] Completed\n%s\n", bar, req.Stage, bar)
	if c.preview > 0 && req.Output != "" {
		fmt.Fprintf(c.out, "%s\n", model.Preview(req.Output, c.preview))
	}

	prompt := "Review the output above. Enter feedback (or press Enter to continue):"
	if req.Next != "" {
		fmt.Fprintf(c.out, "Next: %s\n", req.Next)
		prompt = fmt.Sprintf("Review the output above. Enter feedback for %s (or press Enter to continue):", req.Next)
	}
	return c.Ask(ctx, prompt+"\n> ")
}

// Ask 打印提示并读取一行输入，读到 EOF 视为空输入。
// 取消时已经开始的读取不会丢弃，读到的行交给下一次 Ask。
func (c *Console) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	c.once.Do(c.startReader)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", nil
		}
		if l.err != nil && !errors.Is(l.err, io.EOF) {
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}

// startReader 启动读取协程，读到错误后关闭通道退出
func (c *Console) startReader() {
	c.lines = make(chan line)
	go func() {
		defer close(c.lines)
		for {
			text, err := c.in.ReadString('\n')
			c.lines <- line{text: text, err: err}
			if err != nil {
				return
			}
		}
	}()
}
