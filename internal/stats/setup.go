package stats

import (
	"fmt"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
)

// migrateDB 负责自动迁移统计相关的数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&GameRecord{}, &UserStatistic{}); err != nil {
		return fmt.Errorf("无法迁移stats表: %w", err)
	}
	fmt.Println("Stats数据库表迁移成功。")
	return nil
}

// PrimeCachedDB 是stats模块的初始化总入口。
// 统计数据只存SQLite，没有需要预热的Redis缓存。
func PrimeCachedDB() error {
	return migrateDB()
}
