// Package storagetest 为各包测试提供已建表的临时 sqlite 数据库。
package storagetest

import (
	"path/filepath"
	"testing"

	"shop/internal/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New 在 t.TempDir() 下创建文件型 sqlite 库并完成迁移；测试结束自动关闭。
func New(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shop_test.db")
	db, err := storage.Open(storage.DriverSQLite, storage.SQLiteDSN(path), nil)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
