package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mailflow/backend/internal/bootstrap"
	"mailflow/backend/internal/config"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/logger"
)

// 未指定 --as 时以系统身份发送，拥有全部能力
var systemActor = &domain.User{ID: "system", Email: "system", Role: domain.RoleOwner, IsActive: true}

// executor 执行一次发送轮次
type executor interface {
	Execute(ctx context.Context, mailingID string, actor *domain.User) (*domain.SendResult, error)
}

// userLookup 按邮箱查找发起人
type userLookup interface {
	GetUserByEmail(email string) (*domain.User, error)
}

// errRejected 发送请求被拒绝，命令以非零状态退出
var errRejected = errors.New("send rejected")

// 被拒绝结果的提示
var rejectMessages = map[domain.SendOutcome]string{
	domain.OutcomeNotFound:        "mailing %s does not exist",
	domain.OutcomeAlreadyFinished: "mailing %s is already finished",
	domain.OutcomeDisabled:        "mailing %s is disabled",
	domain.OutcomeNotStarted:      "mailing %s has not started yet",
	domain.OutcomeForbidden:       "not allowed to send mailing %s",
	domain.OutcomeInProgress:      "mailing %s is being sent by another process",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var asEmail string

	cmd := &cobra.Command{
		Use:   "send-mailing <mailing-id>",
		Short: "Run one send pass for a mailing",
		Long: `Run one send pass for a mailing using the configured storage and mail backend.
Without a database configured the command runs against an empty in-memory store.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := logger.New(logger.FromConfig(cfg.Log))
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			app, err := bootstrap.New(cfg, log, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return sendMailing(ctx, app.Sender, app.Store, args[0], asEmail, cmd.OutOrStdout(), log)
		},
	}
	cmd.Flags().StringVar(&asEmail, "as", "", "email of the user to act as (default: system)")
	return cmd
}

// sendMailing 解析发起人并执行发送；被拒绝时返回 errRejected
func sendMailing(ctx context.Context, sender executor, users userLookup, mailingID, asEmail string, out io.Writer, log *zap.Logger) error {
	actor := systemActor
	if asEmail != "" {
		user, err := users.GetUserByEmail(domain.NormalizeEmail(asEmail))
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return fmt.Errorf("user %s does not exist", asEmail)
			}
			return err
		}
		actor = user
	}

	result, err := sender.Execute(ctx, mailingID, actor)
	if err != nil {
		return fmt.Errorf("send pass failed: %w", err)
	}

	if result.Outcome.Rejected() {
		format, ok := rejectMessages[result.Outcome]
		if !ok {
			format = "mailing %s: " + string(result.Outcome)
		}
		log.Warn("send rejected", zap.String("mailing_id", mailingID), zap.String("outcome", string(result.Outcome)))
		return fmt.Errorf("%w: "+format, errRejected, mailingID)
	}

	fmt.Fprintf(out, "mailing %s: %s (status %s)\n", mailingID, result.Outcome, result.Status)
	return nil
}
