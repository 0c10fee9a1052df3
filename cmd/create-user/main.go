package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mailflow/backend/internal/bootstrap"
	"mailflow/backend/internal/config"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/logger"
)

// userCreator 创建指定角色的账号
type userCreator interface {
	CreateUser(email, password string, role domain.UserRole) (*domain.User, error)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		email    string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:           "create-user",
		Short:         "创建管理员或站点所有者账号",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			return createUser(app.Auth, email, password, domain.UserRole(role), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "账号邮箱")
	cmd.Flags().StringVar(&password, "password", "", "账号密码（8-72 个字符）")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleManager), "角色: user, manager 或 owner")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createUser(users userCreator, email, password string, role domain.UserRole, out io.Writer) error {
	if !role.Valid() {
		return fmt.Errorf("无效的角色 %q", role)
	}
	user, err := users.CreateUser(email, password, role)
	if err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}
	fmt.Fprintf(out, "✓ 已创建用户 %s (ID: %s, 角色: %s)\n", user.Email, user.ID, user.Role)
	return nil
}
