package item

import (
	"errors"
	"fmt"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/metadata"
)

// --- 哨兵错误 ---

var (
	// ErrUnknownTopic 表示请求了一个不在静态枚举中的主题
	ErrUnknownTopic = errors.New("未知的主题标签")

	// ErrNoContentAvailable 表示该主题在内容库中没有任何素材
	ErrNoContentAvailable = errors.New("该主题没有可用的素材")
)

// DefaultSampleCount 是单次抽样的默认素材数量（一个回合的四个选项）
const DefaultSampleCount = 4

// SampledItem 是抽样结果中单个素材的完整信息
type SampledItem struct {
	ID       string
	Name     string
	ImageURL string
}

// Sample 从指定主题中随机抽取至多count个素材。
//   - 抽样在"合格子集"（图片不在excludeImageURLs中的素材）上均匀进行；
//     如果排除后合格子集为空，则忽略排除条件（宁可重复，不阻塞游戏）。
//   - fresh为true时（hide模式），抽样向低曝光素材加权倾斜。
//   - 结果按名称去重；素材不足时返回少于count个。
func Sample(topic string, excludeImageURLs []string, count int, fresh bool) ([]SampledItem, error) {
	if !IsValidTopic(topic) {
		return nil, ErrUnknownTopic
	}
	if count <= 0 {
		count = DefaultSampleCount
	}

	RLockRepository()
	defer RUnlockRepository()

	bucket := getBucketUnsafe(topic)
	if bucket == nil || len(bucket.ids) == 0 {
		return nil, ErrNoContentAvailable
	}

	excluded := make(map[string]bool, len(excludeImageURLs))
	for _, url := range excludeImageURLs {
		if url != "" {
			excluded[url] = true
		}
	}

	// 1. 建立合格子集；排空时忽略排除条件 (fail open)
	eligible := make([]int, 0, len(bucket.ids))
	for i, info := range bucket.infos {
		if !excluded[info.ImageURL] {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		for i := range bucket.ids {
			eligible = append(eligible, i)
		}
	}

	picked := make(map[int]bool, count)
	seenNames := make(map[string]bool, count)
	result := make([]SampledItem, 0, count)

	take := func(index int) {
		info := bucket.infos[index]
		picked[index] = true
		seenNames[info.Name] = true
		result = append(result, SampledItem{
			ID:       bucket.ids[index],
			Name:     info.Name,
			ImageURL: info.ImageURL,
		})
	}

	eligibleSet := make(map[int]bool, len(eligible))
	for _, i := range eligible {
		eligibleSet[i] = true
	}

	// 2. "新鲜优先"路径：带拒绝的加权抽取，失败名额由均匀路径补足
	if fresh {
		attempts := freshDrawAttemptsPerSlot * count
		for len(result) < count && attempts > 0 {
			attempts--
			index := drawFreshUnsafe(topic)
			if index < 0 {
				break
			}
			if !eligibleSet[index] || picked[index] || seenNames[bucket.infos[index].Name] {
				continue
			}
			take(index)
		}
	}

	// 3. 均匀路径：打乱合格子集，按序补足剩余名额
	if len(result) < count {
		for _, index := range shuffledCopy(eligible) {
			if len(result) >= count {
				break
			}
			if picked[index] || seenNames[bucket.infos[index].Name] {
				continue
			}
			take(index)
		}
	}

	return result, nil
}

// MarkServed 在一个回合成功下发后记录素材曝光。
// 内存中的权重即刻更新；Redis镜像是尽力而为的，失败只记录日志，
// 不影响回合下发。
func MarkServed(topic string, itemIDs []string) {
	if globalRepository == nil || len(itemIDs) == 0 {
		return
	}

	LockRepository()
	for _, id := range itemIDs {
		pos, ok := globalRepository.idToPos[id]
		if !ok || pos.topic != topic {
			continue
		}
		if err := bumpShownUnsafe(pos.topic, pos.index); err != nil {
			fmt.Printf("警告: %v\n", err)
		}
	}
	UnlockRepository()

	if !database.IsRedisHealthy() {
		return
	}

	pipe := database.RDB.Pipeline()
	for _, id := range itemIDs {
		pipe.HIncrBy(database.Ctx, ExposureKey, id, 1)
		pipe.SAdd(database.Ctx, DirtySetKey, id)
	}
	pipe.Incr(database.Ctx, metadata.RedisServedRoundsKey)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		fmt.Printf("警告: 同步素材曝光到Redis失败: %v\n", err)
	}
}

// Topics 返回支持的主题静态枚举。
func Topics() []string {
	out := make([]string, len(AllTopics))
	copy(out, AllTopics)
	return out
}

// AvailableTopics 返回内容库中至少有一个素材的主题列表。
func AvailableTopics() []string {
	var available []string
	for _, topic := range AllTopics {
		if TopicItemCount(topic) > 0 {
			available = append(available, topic)
		}
	}
	return available
}
