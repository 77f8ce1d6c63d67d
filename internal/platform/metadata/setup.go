package metadata

import (
	"fmt"
	"strconv"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
)

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Metadata{}); err != nil {
		return fmt.Errorf("无法迁移metadata表: %w", err)
	}
	fmt.Println("Metadata数据库表迁移成功。")
	return nil
}

// WarmupCache 将快照级别的计数器恢复到Redis中，作为实时计数的起点
func WarmupCache() error {
	count, err := GetSnapshotServedRounds(database.DB)
	if err != nil {
		return fmt.Errorf("无法读取快照回合计数: %w", err)
	}

	if err := database.RDB.Set(database.Ctx, RedisServedRoundsKey, strconv.FormatUint(count, 10), 0).Err(); err != nil {
		return fmt.Errorf("无法预热回合计数到Redis: %w", err)
	}
	return nil
}

// PrimeCachedDB 是metadata模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}
