package round

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/item"
	"github.com/wikiquiz-go/wikiquiz-round-backend/pkg/token"
)

// NextRound 是获取新回合的核心业务逻辑。
//   - 主题在allowedTopics中均匀随机选取，与各主题的素材量无关
//     （小主题不会因为素材少而被少抽到，这是沿用原版的产品决策）。
//   - usedImages 是调用方最近见过的图片URL，抽样时尽量避开；
//     hide模式下抽样额外偏向低曝光素材。
//   - 目标素材在抽样结果中均匀随机指定。
func NextRound(allowedTopics []string, mode Mode, usedImages []string) (*Round, error) {
	// 1. 校验输入
	if len(allowedTopics) == 0 {
		return nil, ErrInvalidTopics
	}
	for _, t := range allowedTopics {
		if !item.IsValidTopic(t) {
			return nil, ErrInvalidTopics
		}
	}
	if !IsValidMode(mode) {
		return nil, ErrInvalidMode
	}

	// 2. 均匀随机选取主题
	topic := allowedTopics[rand.Intn(len(allowedTopics))]

	// 3. 委托内容库抽样；hide模式偏向新鲜素材
	items, err := item.Sample(topic, usedImages, item.DefaultSampleCount, mode == ModeHide)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, item.ErrNoContentAvailable
	}

	// 4. 在抽样结果中均匀随机指定目标
	target := items[rand.Intn(len(items))]

	// 5. 生成回合ID和签名
	roundID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成回合ID: %w", err)
	}
	payload := token.RoundPayload{
		RoundID:  roundID.String(),
		Topic:    topic,
		TargetID: target.ID,
	}
	signature, err := token.GenerateRoundSignature(payload)
	if err != nil {
		return nil, fmt.Errorf("无法生成回合签名: %w", err)
	}

	// 6. 记录素材曝光（尽力而为，不阻塞回合下发）
	itemIDs := make([]string, len(items))
	for i, it := range items {
		itemIDs[i] = it.ID
	}
	item.MarkServed(topic, itemIDs)

	return &Round{
		ID:        roundID.String(),
		Topic:     topic,
		Mode:      mode,
		Items:     items,
		Target:    target,
		Signature: signature,
		CreatedAt: time.Now(),
	}, nil
}
