package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailflow/backend/internal/config"
)

// SMTPTransport 通过 SMTP 中继投递邮件
//
// 每次 Send 建立一次会话；服务端宣告 STARTTLS 时改用加密会话，
// 配置了用户名时使用 PLAIN 认证。
type SMTPTransport struct {
	addr       string
	username   string
	password   string
	timeout    time.Duration
	requireTLS bool
	limiter    *rate.Limiter
	log        *zap.Logger

	tlsConfig *tls.Config
	now       func() time.Time
}

// NewSMTPTransport 创建 SMTP 通道
func NewSMTPTransport(cfg config.MailConfig, log *zap.Logger) *SMTPTransport {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &SMTPTransport{
		addr:       net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		username:   cfg.Username,
		password:   cfg.Password,
		timeout:    timeout,
		requireTLS: cfg.RequireTLS,
		limiter:    limiter,
		log:        log,
		tlsConfig:  &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		now:        time.Now,
	}
}

// Send 投递一封邮件
func (t *SMTPTransport) Send(ctx context.Context, subject, body, from string, to []string) error {
	if len(to) == 0 {
		return &TransportError{Detail: "no recipients"}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return wrap(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	msg, err := buildMessage(subject, body, from, to, t.now())
	if err != nil {
		return wrap(err)
	}

	if err := t.deliver(ctx, from, to, msg); err != nil {
		t.log.Debug("smtp delivery failed",
			zap.String("addr", t.addr),
			zap.Strings("to", to),
			zap.Error(err))
		return wrap(err)
	}
	return nil
}

func (t *SMTPTransport) deliver(ctx context.Context, from string, to []string, msg []byte) error {
	c, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if t.username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support AUTH")
		}
		if err := c.Auth(sasl.NewPlainClient("", t.username, t.password)); err != nil {
			return err
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}

// connect 建立 SMTP 会话
//
// 先用明文会话读取 EHLO 宣告的扩展；服务端支持 STARTTLS 时
// 断开并以 NewClientStartTLS 重新建立加密会话。
func (t *SMTPTransport) connect(ctx context.Context) (*gosmtp.Client, error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}

	c := gosmtp.NewClient(conn)
	if err := c.Hello("localhost"); err != nil {
		_ = c.Close()
		return nil, err
	}
	if ok, _ := c.Extension("STARTTLS"); !ok {
		if t.requireTLS {
			_ = c.Close()
			return nil, errors.New("smtp server does not support STARTTLS")
		}
		return c, nil
	}
	_ = c.Quit()

	conn, err = t.dial(ctx)
	if err != nil {
		return nil, err
	}
	tc, err := gosmtp.NewClientStartTLS(conn, t.tlsConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("starttls: %w", err)
	}
	return tc, nil
}

func (t *SMTPTransport) dial(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}
