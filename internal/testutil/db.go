// Package testutil 提供测试用的基础设施，仅被 _test.go 引用
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"realtime_chat_server/internal/dao/mysql"
	"realtime_chat_server/internal/dao/mysql/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB 打开一个独立的内存 SQLite 库并完成迁移
// 连接数限制为 1，事务内外不会拿到不同的内存库
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, mysql.Migrate(db))
	return db
}

// NewRepos 打开内存库并返回 Repository 聚合
func NewRepos(t testing.TB) (*gorm.DB, *repository.Repositories) {
	db := NewDB(t)
	return db, repository.NewRepositories(db)
}
