package startup

import (
	"context"
	"fmt"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/item"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/backup"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/metadata"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/stats"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/user"
)

// InitializeApplication 是应用首次启动时执行的总入口
func InitializeApplication() error {
	fmt.Println("开始应用首次初始化...")

	if err := metadata.PrimeCachedDB(); err != nil {
		return err
	}
	if err := user.PrimeCachedDB(); err != nil {
		return err
	}
	if err := item.PrimeCachedDB(); err != nil {
		return err
	}
	if err := stats.PrimeCachedDB(); err != nil {
		return err
	}

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 是一个专门用于在运行时热重建Redis缓存的函数
func RebuildCache() error {
	fmt.Println("开始缓存热重建...")

	if err := metadata.WarmupCache(); err != nil {
		return err
	}

	err := func() error {
		item.LockRepository()
		defer item.UnlockRepository()
		if err := item.WarmupCache(); err != nil {
			return err
		}

		if err := user.WarmupCache(); err != nil {
			return err
		}
		return nil
	}()

	if err != nil {
		return err
	}

	// 触发一次新的快照，让SQLite的水位追上刚恢复的Redis状态
	fmt.Println("缓存热重建完成，正在触发一次新的数据快照...")
	if err := backup.CreateConsistentSnapshotInDB(context.Background()); err != nil {
		fmt.Printf("警告: 缓存热重建后的快照创建失败: %v\n", err)
	} else {
		fmt.Println("快照创建成功！")
	}

	return nil
}
