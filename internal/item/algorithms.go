package item

import (
	"math/rand"
)

// --- 算法常量 ---
const (
	// shownWeightOffset 避免未曝光素材的权重发散，同时保证
	// 新素材与老素材之间的权重差距有限
	shownWeightOffset = 5.0

	// freshDrawAttemptsPerSlot 是"新鲜优先"抽样中，每个名额允许的
	// 带拒绝加权抽取次数，超过后退化为均匀抽样
	freshDrawAttemptsPerSlot = 8
)

// CalculateWeightForShown 根据素材的曝光次数计算其"新鲜优先"选择权重。
func CalculateWeightForShown(shown float64) float64 {
	return 1.0 / (shown + shownWeightOffset)
}

// drawFreshUnsafe 在指定主题内做一次加权随机抽取，偏向低曝光素材。
// 需要调用方持有仓库读锁。返回抽中的下标；树为空时返回-1。
func drawFreshUnsafe(topic string) int {
	bucket := getBucketUnsafe(topic)
	if bucket == nil || bucket.weightsTree == nil {
		return -1
	}
	total := bucket.weightsTree.TotalSum()
	if total <= 0 {
		return -1
	}
	index, err := bucket.weightsTree.Find(rand.Float64() * total)
	if err != nil {
		return -1
	}
	return index
}

// shuffledCopy 返回一个打乱顺序的下标切片副本。
func shuffledCopy(indexes []int) []int {
	out := make([]int, len(indexes))
	copy(out, indexes)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
