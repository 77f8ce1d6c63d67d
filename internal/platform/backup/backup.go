package backup

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/item"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/metadata"
	"github.com/wikiquiz-go/wikiquiz-round-backend/pkg/lifecycle"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const backupInterval = 10 * time.Minute // 定时快照频率

var backupMutex sync.Mutex // 避免意外竞态

// StartBackupScheduler 启动一个后台Goroutine来定期将曝光数据快照回SQLite
// 它接收一个lifecycle.Handle来管理其生命周期
func StartBackupScheduler(handle *lifecycle.Handle) {
	defer handle.Close() // 确保在退出时通知管理器
	fmt.Println("曝光数据快照调度器已启动。")

	for {
		// 使用可中断的休眠来代替ticker。
		// 这使得整个循环可以在收到停机信号时立刻从休眠中唤醒并退出。
		if err := handle.Sleep(backupInterval); err != nil {
			fmt.Printf("快照调度器: 休眠被中断，正在关闭...\n")
			return
		}

		if !database.IsRedisHealthy() {
			fmt.Println("快照调度器: 检测到Redis不可用，跳过本次快照。")
			continue
		}

		fmt.Println("快照调度器: 正在执行定时快照...")
		if err := CreateConsistentSnapshotInDB(handle.Ctx()); err != nil {
			// 如果错误是由于停机信号导致的，则静默退出
			if err != context.Canceled && err != context.DeadlineExceeded {
				fmt.Printf("快照调度器错误: 执行快照失败: %v\n", err)
			}
		} else {
			fmt.Println("快照调度器: 快照成功。")
		}
	}
}

// CreateConsistentSnapshotInDB 执行一次原子的、一致的曝光数据快照：
// 把自上次快照以来曝光次数变化过的素材（脏集合）的计数写回SQLite，
// 并更新元数据中的快照水位。
func CreateConsistentSnapshotInDB(ctx context.Context) (err error) {
	backupMutex.Lock()
	defer backupMutex.Unlock()

	var servedRoundsCmd *redis.StringCmd
	var dirtyIDs []string
	var dirtyExposures []interface{}

	transferred, err := func() (bool, error) {
		// item 模块在两批Redis操作期间保持锁定，确保dirtyIDs和dirtyExposures不撕裂
		item.LockRepository()
		defer item.UnlockRepository()

		dirtySetExists, err := database.RDB.Exists(ctx, item.DirtySetKey).Result()
		if err != nil {
			return false, fmt.Errorf("无法检查Redis中 DirtySetKey 是否存在: %w", err)
		}

		// 1. 使用原子事务(TxPipeline)从Redis获取快照
		pipe := database.RDB.TxPipeline()
		servedRoundsCmd = pipe.Get(database.Ctx, metadata.RedisServedRoundsKey)
		dirtyIDsCmd := pipe.SMembers(database.Ctx, item.DirtySetKey)
		if dirtySetExists > 0 {
			pipe.Rename(database.Ctx, item.DirtySetKey, item.ProcessingDirtySetKey)
		}
		_, err = pipe.Exec(database.Ctx)
		if err != nil && err != redis.Nil {
			return false, fmt.Errorf("无法从Redis原子地获取快照数据: %w", err)
		}
		// TxPipeline 成功后，transferred为true，代表 DirtySetKey 已被消费

		dirtyIDs, err = dirtyIDsCmd.Result()
		if err != nil {
			return true, fmt.Errorf("获取 dirtyIDs 的结果时失败: %w", err)
		}
		if len(dirtyIDs) > 0 {
			dirtyExposures, err = database.RDB.HMGet(database.Ctx, item.ExposureKey, dirtyIDs...).Result()
			if err != nil {
				return true, fmt.Errorf("获取 dirtyExposures 的结果时失败: %w", err)
			}
		}

		return true, nil
	}()

	if transferred {
		defer func() {
			if err != nil {
				// 补偿：把processing集合合并回dirty集合，等待下一次快照
				pipe := database.RDB.TxPipeline()
				pipe.SUnionStore(database.Ctx, item.DirtySetKey, item.DirtySetKey, item.ProcessingDirtySetKey)
				pipe.Del(database.Ctx, item.ProcessingDirtySetKey)
				pipe.Exec(database.Ctx)
			} else {
				database.RDB.Del(database.Ctx, item.ProcessingDirtySetKey)
			}
		}()
	}

	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// 2. 准备将写入SQLite的数据
	servedRounds, err := servedRoundsCmd.Uint64()
	if err == redis.Nil {
		servedRounds = 0
	} else if err != nil {
		return fmt.Errorf("获取 servedRounds 的结果时失败: %w", err)
	}

	lastSnapshotRounds, err := metadata.GetSnapshotServedRounds(database.DB)
	if err != nil {
		return fmt.Errorf("获取 lastSnapshotRounds 失败: %w", err)
	}
	// 水位未变且没有脏数据，无需快照
	if servedRounds == lastSnapshotRounds && len(dirtyIDs) == 0 {
		return nil
	}

	itemsToUpsert := make([]item.Item, 0, len(dirtyIDs))
	for i, itemID := range dirtyIDs {
		raw, ok := dirtyExposures[i].(string)
		if !ok {
			return fmt.Errorf("素材 %s 在exposure哈希表中没有对应的计数", itemID)
		}
		shown, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("解析素材 %s 的曝光计数失败: %w", itemID, err)
		}

		info, ok := item.GetItemInfoByID(itemID)
		if !ok {
			fmt.Printf("快照警告: 脏集合中的素材 %s 不在内存仓库中，已跳过。\n", itemID)
			continue
		}

		itemsToUpsert = append(itemsToUpsert, item.Item{
			ItemID:   itemID, // 额外包含业务主键
			Name:     info.Name,
			ImageURL: info.ImageURL,
			Topic:    info.Topic,
			Shown:    shown,
		})
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// 3. 将快照数据持久化到SQLite
	const maxRetry = 3
	const delay = 50 * time.Millisecond
	for i := 0; i < maxRetry; i++ {
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			// a. 持久化item模块的曝光计数
			// 冲突的判断依据是item_id，模拟主键唯一
			if len(itemsToUpsert) > 0 {
				err = tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "item_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"shown", "updated_at"}),
				}).Create(&itemsToUpsert).Error
				if err != nil {
					return fmt.Errorf("批量更新素材曝光数据失败: %w", err)
				}
			}

			// b. 更新metadata模块的快照水位
			if err := metadata.SetSnapshotServedRounds(tx, servedRounds); err != nil {
				return fmt.Errorf("更新元数据 SnapshotServedRounds 失败: %w", err)
			}
			if err := metadata.SetLastExposureSnapshotAt(tx, time.Now()); err != nil {
				return fmt.Errorf("更新元数据 LastExposureSnapshotAt 失败: %w", err)
			}

			return nil
		})

		if err == nil || !database.IsRetryableError(err) {
			break
		}
		time.Sleep(delay)
	}
	return err
}
