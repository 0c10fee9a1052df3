// Package migrations 内嵌 goose 迁移脚本，按数据库方言分目录。
package migrations

import "embed"

// FS 包含 postgres/ 与 mysql/ 两套迁移
//
//go:embed postgres/*.sql mysql/*.sql
var FS embed.FS
