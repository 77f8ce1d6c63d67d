package stats

import (
	"gorm.io/gorm"
)

// AllBucket 是跨主题聚合使用的合成主题桶
const AllBucket = "all"

// GameRecord 定义了一局完整对局的持久化结果。
// 记录一旦写入便不可变；每个用户保留的记录数量有上限，
// 超限时按CreatedAt逐出最旧的一条。
type GameRecord struct {
	gorm.Model

	// Username 是完成对局的用户
	Username string `gorm:"index" json:"username"`

	// Mode 是对局模式 (rounds/time/hide)
	Mode string `json:"mode"`

	// Score 是本局总得分
	Score int `json:"score"`

	// CorrectRate 是本局的正确率 [0, 1]
	CorrectRate float64 `json:"correctRate"`

	// Topics 是本局涉及的主题集合，以逗号连接
	Topics string `json:"topics"`
}

// UserStatistic 定义了按 (username, mode, topic) 唯一键聚合的滚动统计。
// CorrectRate 是以"局"为样本的增量均值：每局贡献一个样本，
// 而不是每道题。
type UserStatistic struct {
	gorm.Model

	Username string `gorm:"uniqueIndex:idx_user_mode_topic;type:varchar(64)" json:"username"`
	Mode     string `gorm:"uniqueIndex:idx_user_mode_topic;type:varchar(16)" json:"mode"`
	Topic    string `gorm:"uniqueIndex:idx_user_mode_topic;type:varchar(32)" json:"topic"`

	// TotalScore 是该桶内所有对局得分的总和
	TotalScore int `json:"totalScore"`

	// CorrectRate 是该桶内按局的滚动平均正确率
	CorrectRate float64 `json:"correctRate"`

	// TotalGamesPlayed 是计入该桶的对局数，每局严格加一
	TotalGamesPlayed int `json:"totalGamesPlayed"`
}

// QuestionOutcome 是一局中单道题目的结果
type QuestionOutcome struct {
	Topic           string `json:"topic" binding:"required"`
	IsCorrect       bool   `json:"isCorrect"`
	PointsIncrement int    `json:"pointsIncrement"`
}
