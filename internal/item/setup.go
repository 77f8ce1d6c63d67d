package item

import (
	"encoding/json"
	"fmt"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
)

// PrimeCachedDB 负责初始化item模块的数据库和内存仓库
func PrimeCachedDB() error {
	// 1. 迁移数据库表结构
	if err := migrateDB(); err != nil {
		return err
	}
	// 2. 从数据库加载静态数据到内存仓库
	if err := InitializeRepository(); err != nil {
		return err
	}
	// 3. 将动态数据预热到Redis，并初始化权重树
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Item{}); err != nil {
		return fmt.Errorf("无法迁移item表: %w", err)
	}
	fmt.Println("Item数据库表迁移成功。")
	return nil
}

// WarmupCache 从SQLite加载动态数据到Redis，并根据这些数据重建内存中的权重树。
// 注意：此函数不包含锁，调用方需要确保在安全的时机（如单线程启动或重建大范围锁下）调用。
func WarmupCache() error {
	var itemsInDB []Item
	if err := database.DB.Find(&itemsInDB).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取素材数据: %w", err)
	}

	pipe := database.RDB.Pipeline()
	// 只清空动态数据的Redis键
	pipe.Del(database.Ctx, InfoKey, ExposureKey, DirtySetKey, ProcessingDirtySetKey)

	// 每个主题的初始曝光计数与权重，用于重建权重树
	initialShown := make(map[string][]float64, len(AllTopics))
	initialWeights := make(map[string][]float64, len(AllTopics))
	for topic, bucket := range globalRepository.buckets {
		initialShown[topic] = make([]float64, len(bucket.ids))
		initialWeights[topic] = make([]float64, len(bucket.ids))
	}

	for _, it := range itemsInDB {
		// 静态数据 (item:info Hash)
		infoJSON, _ := json.Marshal(ItemInfo{
			Name:     it.Name,
			ImageURL: it.ImageURL,
			Topic:    it.Topic,
		})
		pipe.HSet(database.Ctx, InfoKey, it.ItemID, infoJSON)

		// 动态曝光数据 (item:exposure Hash)
		pipe.HSet(database.Ctx, ExposureKey, it.ItemID, it.Shown)

		// 初始曝光与权重
		pos, ok := globalRepository.idToPos[it.ItemID]
		if ok {
			initialShown[pos.topic][pos.index] = float64(it.Shown)
			initialWeights[pos.topic][pos.index] = CalculateWeightForShown(float64(it.Shown))
		}
	}

	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热素材动态数据到Redis失败: %w", err)
	}

	// 在预热Redis后，使用正确的初始权重重建内存中的线段树
	for topic, bucket := range globalRepository.buckets {
		if err := bucket.weightsTree.Rebuild(initialWeights[topic]); err != nil {
			return fmt.Errorf("无法为主题 %s 重建线段树: %w", topic, err)
		}
		// 曝光计数同步回内存，保证重建后权重与计数一致
		copy(bucket.shown, initialShown[topic])
	}

	fmt.Printf("成功预热 %d 条素材的动态数据到Redis，并重建了权重树。\n", len(itemsInDB))
	return nil
}
