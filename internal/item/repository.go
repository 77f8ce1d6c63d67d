package item

import (
	"fmt"
	"sync"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"github.com/wikiquiz-go/wikiquiz-round-backend/pkg/tree"
)

// --- Redis-specific Definitions ---
// 这些定义归属于仓库，因为它们描述了仓库所管理的外部动态数据结构

const (
	// InfoKey 是一个Redis Hash，存储所有素材的静态数据
	InfoKey = "item:info"

	// ExposureKey 是一个Redis Hash，存储每个素材的实时曝光次数
	// Field: ItemID, Value: 曝光次数
	ExposureKey = "item:exposure"

	// DirtySetKey 是一个Redis Set，存储自上次快照以来曝光次数
	// 发生变化的素材ID，用于增量备份
	DirtySetKey = "item:exposure:dirty"

	// ProcessingDirtySetKey 只在备份逻辑中被使用
	ProcessingDirtySetKey = "item:exposure:dirty:processing"
)

// --- In-memory Repository ---

// ItemInfo 持有素材的静态数据，在程序启动时加载到内存中
type ItemInfo struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Topic    string `json:"topic"`
}

// topicBucket 持有单个主题下的全部素材及其抽样权重
type topicBucket struct {
	ids   []string
	infos []ItemInfo

	// shown 与 weightsTree 记录每个素材的曝光情况，
	// 用于"新鲜优先"抽样（hide模式）
	shown       []float64
	weightsTree *tree.SegmentTree
}

// repository 是item模块的中央数据仓库
type repository struct {
	// 按主题组织的素材，启动后静态部分只读
	buckets map[string]*topicBucket

	// ItemID -> (topic, index) 反查表
	idToPos map[string]position

	rwLock sync.RWMutex
}

type position struct {
	topic string
	index int
}

// globalRepository 是我们仓库的私有单例实例
var globalRepository *repository

// InitializeRepository 从SQLite加载静态素材数据，初始化内存仓库。
// 这个函数应该在应用启动时且仅调用一次。
func InitializeRepository() error {
	var itemsFromDB []Item
	if err := database.DB.Order("id asc").Find(&itemsFromDB).Error; err != nil {
		return fmt.Errorf("无法从SQLite加载素材静态数据: %w", err)
	}

	repo := &repository{
		buckets: make(map[string]*topicBucket, len(AllTopics)),
		idToPos: make(map[string]position, len(itemsFromDB)),
	}

	for _, it := range itemsFromDB {
		if !IsValidTopic(it.Topic) {
			fmt.Printf("警告: 素材 %s 带有未知主题 %q，已跳过。\n", it.ItemID, it.Topic)
			continue
		}
		bucket := repo.buckets[it.Topic]
		if bucket == nil {
			bucket = &topicBucket{}
			repo.buckets[it.Topic] = bucket
		}
		repo.idToPos[it.ItemID] = position{topic: it.Topic, index: len(bucket.ids)}
		bucket.ids = append(bucket.ids, it.ItemID)
		bucket.infos = append(bucket.infos, ItemInfo{
			Name:     it.Name,
			ImageURL: it.ImageURL,
			Topic:    it.Topic,
		})
		bucket.shown = append(bucket.shown, float64(it.Shown))
	}

	// 为每个非空主题构建权重树，初始权重在WarmupCache阶段重建
	for topic, bucket := range repo.buckets {
		segTree, err := tree.NewSegmentTree(len(bucket.ids))
		if err != nil {
			return fmt.Errorf("无法为主题 %s 创建线段树: %w", topic, err)
		}
		bucket.weightsTree = segTree
	}

	globalRepository = repo
	fmt.Printf("素材仓库 (Repository) 初始化成功，加载了 %d 个素材。\n", len(repo.idToPos))
	return nil
}

// --- Public Methods for Concurrency Control ---

// RLockRepository 获取用于读取权重树的读锁。
func RLockRepository() {
	globalRepository.rwLock.RLock()
}

// RUnlockRepository 释放读锁。
func RUnlockRepository() {
	globalRepository.rwLock.RUnlock()
}

// LockRepository 获取用于写入权重树的写锁。
func LockRepository() {
	globalRepository.rwLock.Lock()
}

// UnlockRepository 释放写锁。
func UnlockRepository() {
	globalRepository.rwLock.Unlock()
}

// --- Public Methods for Data Access ---
// 这些方法是线程安全的，因为它们访问的是启动后只读的数据。

// TopicItemCount 返回指定主题下的素材数量。
func TopicItemCount(topic string) int {
	if globalRepository == nil {
		return 0
	}
	bucket := globalRepository.buckets[topic]
	if bucket == nil {
		return 0
	}
	return len(bucket.ids)
}

// GetItemInfoByIndex 返回主题内指定下标的素材静态信息。
func GetItemInfoByIndex(topic string, index int) (ItemInfo, bool) {
	if globalRepository == nil {
		return ItemInfo{}, false
	}
	bucket := globalRepository.buckets[topic]
	if bucket == nil || index < 0 || index >= len(bucket.infos) {
		return ItemInfo{}, false
	}
	return bucket.infos[index], true
}

// GetItemInfoByID 通过素材ID返回其静态信息。
func GetItemInfoByID(id string) (ItemInfo, bool) {
	if globalRepository == nil {
		return ItemInfo{}, false
	}
	pos, ok := globalRepository.idToPos[id]
	if !ok {
		return ItemInfo{}, false
	}
	return GetItemInfoByIndex(pos.topic, pos.index)
}

// --- Unsafe Methods for Internal Use ---
// 这些方法必须在手动获取锁之后才能被安全调用。

func getBucketUnsafe(topic string) *topicBucket {
	if globalRepository == nil {
		return nil
	}
	return globalRepository.buckets[topic]
}

// bumpShownUnsafe 将主题内指定下标的曝光计数加一，并同步更新权重树。
func bumpShownUnsafe(topic string, index int) error {
	bucket := getBucketUnsafe(topic)
	if bucket == nil || index < 0 || index >= len(bucket.shown) {
		return fmt.Errorf("曝光计数更新失败: 主题 %s 下标 %d 非法", topic, index)
	}
	bucket.shown[index]++
	return bucket.weightsTree.Update(index, CalculateWeightForShown(bucket.shown[index]))
}
