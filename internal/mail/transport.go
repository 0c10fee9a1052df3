// Package mail 实现出站邮件投递。
//
// 每次 Send 调用只投递一封邮件，不做重试；失败以 *TransportError 返回。
package mail

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mailflow/backend/internal/config"
)

// Transport 出站邮件通道
type Transport interface {
	Send(ctx context.Context, subject, body, from string, to []string) error
}

// TransportError 投递失败，Error() 只返回服务端或网络给出的细节
type TransportError struct {
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	return e.Detail
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// wrap 将底层错误转换为 TransportError，已是 TransportError 的原样返回
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Detail: err.Error(), Err: err}
}

// New 根据配置创建出站通道
func New(cfg config.MailConfig, log *zap.Logger) (Transport, error) {
	switch cfg.Backend {
	case "console", "":
		return NewConsoleTransport(log), nil
	case "smtp":
		return NewSMTPTransport(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported mail backend %q", cfg.Backend)
	}
}
