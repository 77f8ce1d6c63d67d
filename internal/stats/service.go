package stats

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/config"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoOutcomes 表示提交的对局不包含任何题目
var ErrNoOutcomes = errors.New("对局不包含任何题目")

// GameSummary 是RecordGame返回的本局汇总
type GameSummary struct {
	Score       int
	CorrectRate float64
}

// bucketAggregate 是单个主题桶在本局内的聚合
type bucketAggregate struct {
	score     int
	correct   int
	questions int
}

// rate 返回该桶在本局内的正确率
func (b bucketAggregate) rate() float64 {
	if b.questions == 0 {
		return 0
	}
	return float64(b.correct) / float64(b.questions)
}

// RecordGame 将一局对局折叠进持久化统计：
//  1. 写入一条不可变的GameRecord，超出保留上限时逐出该用户最旧的一条；
//  2. 对每个涉及的主题以及合成桶"all"，原子地upsert滚动统计。
//
// GameRecord本身的写入失败会使整个操作失败；
// 单个主题桶的upsert失败只记录日志，不影响整体结果（明确的尽力而为策略）。
func RecordGame(username, mode string, outcomes []QuestionOutcome) (*GameSummary, error) {
	if len(outcomes) == 0 {
		return nil, ErrNoOutcomes
	}

	// 1. 按主题桶聚合本局结果
	buckets := make(map[string]*bucketAggregate)
	overall := &bucketAggregate{}
	buckets[AllBucket] = overall
	for _, q := range outcomes {
		b := buckets[q.Topic]
		if b == nil {
			b = &bucketAggregate{}
			buckets[q.Topic] = b
		}
		b.questions++
		overall.questions++
		if q.IsCorrect {
			b.score += q.PointsIncrement
			b.correct++
			overall.score += q.PointsIncrement
			overall.correct++
		}
	}

	topics := make([]string, 0, len(buckets)-1)
	for topic := range buckets {
		if topic != AllBucket {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)

	// 2. 在一个事务中写入GameRecord并执行保留上限逐出
	record := GameRecord{
		Username:    username,
		Mode:        mode,
		Score:       overall.score,
		CorrectRate: overall.rate(),
		Topics:      strings.Join(topics, ","),
	}
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("无法写入对局记录: %w", err)
		}
		return evictOldestIfOverCap(tx, username, config.Cfg.Game.MaxGameRecords)
	})
	if err != nil {
		return nil, err
	}

	// 3. 尽力而为地更新各主题桶的滚动统计
	var failed []string
	for topic, b := range buckets {
		if err := upsertStatistic(database.DB, username, mode, topic, b.score, b.rate()); err != nil {
			failed = append(failed, topic)
			fmt.Printf("警告: 用户 %s 的主题桶 %q 统计更新失败: %v\n", username, topic, err)
		}
	}
	if len(failed) > 0 {
		fmt.Printf("警告: 对局已保存，但 %d 个主题桶的统计未能更新: %v\n", len(failed), failed)
	}

	return &GameSummary{Score: overall.score, CorrectRate: overall.rate()}, nil
}

// evictOldestIfOverCap 在记录数超过上限时删除该用户最旧的一条对局记录。
// 每次插入至多逐出一条，不做批量裁剪。
func evictOldestIfOverCap(tx *gorm.DB, username string, limit int) error {
	var count int64
	if err := tx.Model(&GameRecord{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("无法统计用户 %s 的对局记录数: %w", username, err)
	}
	if count <= int64(limit) {
		return nil
	}

	var oldest GameRecord
	if err := tx.Where("username = ?", username).Order("created_at asc").First(&oldest).Error; err != nil {
		return fmt.Errorf("无法定位用户 %s 最旧的对局记录: %w", username, err)
	}
	if err := tx.Unscoped().Delete(&oldest).Error; err != nil {
		return fmt.Errorf("无法逐出对局记录 %d: %w", oldest.ID, err)
	}
	return nil
}

// upsertStatistic 原子地创建或更新一个 (username, mode, topic) 统计桶。
// 更新通过存储层的表达式一次完成，SET中的表达式全部基于更新前的行值求值，
// 因此并发对局不会互相丢失更新：
//
//	correct_rate = (correct_rate * total_games_played + 本局rate) / (total_games_played + 1)
//	total_games_played = total_games_played + 1
func upsertStatistic(db *gorm.DB, username, mode, topic string, score int, rate float64) error {
	stat := UserStatistic{
		Username:         username,
		Mode:             mode,
		Topic:            topic,
		TotalScore:       score,
		CorrectRate:      rate,
		TotalGamesPlayed: 1,
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}, {Name: "mode"}, {Name: "topic"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_score":        gorm.Expr("total_score + ?", score),
			"correct_rate":       gorm.Expr("(correct_rate * total_games_played + ?) / (total_games_played + 1)", rate),
			"total_games_played": gorm.Expr("total_games_played + 1"),
			"updated_at":         gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&stat).Error
}

// GetUserStatistics 返回指定用户的统计桶列表，mode为空时返回全部模式。
func GetUserStatistics(username, mode string) ([]UserStatistic, error) {
	query := database.DB.Where("username = ?", username)
	if mode != "" {
		query = query.Where("mode = ?", mode)
	}
	var out []UserStatistic
	if err := query.Order("mode asc, topic asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("无法读取用户 %s 的统计: %w", username, err)
	}
	return out, nil
}

// GetUserGames 返回指定用户最近的对局记录，按时间倒序。
func GetUserGames(username string, limit int) ([]GameRecord, error) {
	if limit <= 0 || limit > config.Cfg.Game.MaxGameRecords {
		limit = config.Cfg.Game.MaxGameRecords
	}
	var out []GameRecord
	err := database.DB.Where("username = ?", username).
		Order("created_at desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取用户 %s 的对局记录: %w", username, err)
	}
	return out, nil
}
