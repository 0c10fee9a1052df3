package mail

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleTransport 将邮件写入日志而不真正发送，用于开发环境
type ConsoleTransport struct {
	log *zap.Logger
}

// NewConsoleTransport 创建控制台通道
func NewConsoleTransport(log *zap.Logger) *ConsoleTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConsoleTransport{log: log}
}

// Send 记录邮件内容
func (t *ConsoleTransport) Send(ctx context.Context, subject, body, from string, to []string) error {
	if err := ctx.Err(); err != nil {
		return wrap(err)
	}
	t.log.Info("outbound mail",
		zap.String("from", from),
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
