package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"mailflow/backend/internal/config"
	"mailflow/backend/migrations"
)

var (
	dbType string
	dbDSN  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "数据库迁移工具",
		Long:          "使用内嵌的迁移脚本升级或回滚 PostgreSQL / MySQL 数据库。未指定参数时读取 MAILFLOW_DATABASE_* 配置。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbType, "type", "", "数据库类型: mysql 或 postgres")
	root.PersistentFlags().StringVar(&dbDSN, "dsn", "", "数据库连接字符串")

	root.AddCommand(
		migrateCmd("up", "执行全部未应用的迁移", goose.Up),
		migrateCmd("down", "回滚最近一次迁移", goose.Down),
		migrateCmd("status", "查看迁移状态", goose.Status),
	)
	return root
}

func migrateCmd(use, short string, run func(db *sql.DB, dir string, opts ...goose.OptionsFunc) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, dsn, err := resolveTarget()
			if err != nil {
				return err
			}

			db, err := sql.Open(typ, dsn)
			if err != nil {
				return fmt.Errorf("无法连接数据库: %w", err)
			}
			defer db.Close()

			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("数据库连接失败: %w", err)
			}

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect(typ); err != nil {
				return fmt.Errorf("set goose dialect: %w", err)
			}
			if err := run(db, typ); err != nil {
				return fmt.Errorf("migrate %s failed: %w", use, err)
			}
			return nil
		},
	}
}

// resolveTarget 命令行参数优先，其次使用配置
func resolveTarget() (string, string, error) {
	typ, dsn := dbType, dbDSN
	if typ == "" || dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return "", "", fmt.Errorf("config error: %w", err)
		}
		if typ == "" {
			typ = cfg.Database.Type
		}
		if dsn == "" {
			dsn = cfg.Database.DSN
		}
	}

	if typ != "mysql" && typ != "postgres" {
		return "", "", fmt.Errorf("不支持的数据库类型 %q（可选: mysql, postgres）", typ)
	}
	if dsn == "" {
		return "", "", fmt.Errorf("缺少数据库连接字符串")
	}
	return typ, dsn, nil
}
