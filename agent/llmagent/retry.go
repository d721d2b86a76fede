package llmagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hildam/relay-flow-go/entity/conf"
	"github.com/hildam/relay-flow-go/repo/logger"
)

// RetryPolicy 模型调用的重试策略，只对临时性错误重试
type RetryPolicy struct {
	Attempts     int           // 最大尝试次数，包含第一次
	InitialDelay time.Duration // 首次重试前的等待
	Multiplier   float64       // 等待时间的增长倍数
	StatusCodes  []int         // 视为临时性错误的 HTTP 状态码
}

// DefaultRetryPolicy 默认策略：3次尝试，1s 起步，每次翻倍
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		InitialDelay: time.Second,
		Multiplier:   2,
		StatusCodes:  []int{429, 500, 503, 504},
	}
}

// RetryPolicyFromConf 由配置构造策略
func RetryPolicyFromConf(c conf.RetryConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if c.Attempts > 0 {
		p.Attempts = c.Attempts
	}
	if c.InitialDelay > 0 {
		p.InitialDelay = time.Duration(c.InitialDelay * float64(time.Second))
	}
	if c.Multiplier > 0 {
		p.Multiplier = c.Multiplier
	}
	if len(c.StatusCodes) > 0 {
		p.StatusCodes = c.StatusCodes
	}
	return p
}

// Retryable 判断错误是否值得重试。openai 客户端的错误信息形如
// "error, status code: 429, status: 429 Too Many Requests, ..."
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	for _, code := range p.StatusCodes {
		if strings.Contains(msg, fmt.Sprintf("status code: %d", code)) {
			return true
		}
	}
	return false
}

// Retry 按策略执行 op，临时性错误按指数退避重试
func Retry[T any](ctx context.Context, p RetryPolicy, log logger.Logger, name string, op func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0

	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if !p.Retryable(err) {
			return res, backoff.Permanent(err)
		}
		log.Error("retry warn, agent = %s, attempt %d/%d failed, err = %v", name, attempt, attempts, err)
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
}
