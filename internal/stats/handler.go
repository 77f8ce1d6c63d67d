package stats

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/item"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/round"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/user"
	"github.com/wikiquiz-go/wikiquiz-round-backend/pkg/token"
)

// RoundProof 是客户端回传的回合签名凭证，证明该回合确实由服务器下发
type RoundProof struct {
	RoundID   string `json:"roundId" binding:"required"`
	Topic     string `json:"topic" binding:"required"`
	TargetID  string `json:"targetId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// SubmitGameRequestBody 定义了对局提交接口的请求体。
// Rounds是可选的回合凭证列表，提交方带上时会逐一校验签名。
type SubmitGameRequestBody struct {
	Username  string            `json:"username" binding:"required"`
	Mode      string            `json:"mode" binding:"required"`
	Questions []QuestionOutcome `json:"questions" binding:"required"`
	Rounds    []RoundProof      `json:"rounds,omitempty"`
}

// SubmitGameResponse 是对局提交接口的响应体
type SubmitGameResponse struct {
	Username    string  `json:"username"`
	Score       int     `json:"score"`
	CorrectRate float64 `json:"correctRate"`
}

// SubmitGame 接收一局完整的对局结果并折叠进统计
func SubmitGame(c *gin.Context) {
	var body SubmitGameRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	if !user.CanActFor(c, body.Username) {
		c.JSON(http.StatusForbidden, gin.H{"error": "无权提交该用户的对局"})
		return
	}
	if !round.IsValidMode(round.Mode(body.Mode)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未知的对局模式: " + body.Mode})
		return
	}
	for _, q := range body.Questions {
		if !item.IsValidTopic(q.Topic) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未知的主题: " + q.Topic})
			return
		}
	}
	for _, proof := range body.Rounds {
		payload := token.RoundPayload{
			RoundID:  proof.RoundID,
			Topic:    proof.Topic,
			TargetID: proof.TargetID,
		}
		if !token.ValidateRoundSignature(payload, proof.Signature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "回合签名校验失败"})
			return
		}
	}

	summary, err := RecordGame(body.Username, body.Mode, body.Questions)
	if err != nil {
		if errors.Is(err, ErrNoOutcomes) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "对局不包含任何题目"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存对局失败"})
		return
	}

	c.JSON(http.StatusOK, SubmitGameResponse{
		Username:    body.Username,
		Score:       summary.Score,
		CorrectRate: summary.CorrectRate,
	})
}

// StatisticEntry 是统计查询接口中单个桶的表示
type StatisticEntry struct {
	Mode             string  `json:"mode"`
	Topic            string  `json:"topic"`
	TotalScore       int     `json:"totalScore"`
	CorrectRate      float64 `json:"correctRate"`
	TotalGamesPlayed int     `json:"totalGamesPlayed"`
}

// GetUserStatisticsHandler 返回用户的统计桶，支持 ?mode= 过滤
func GetUserStatisticsHandler(c *gin.Context) {
	username := c.Param("username")
	if !user.CanActFor(c, username) {
		c.JSON(http.StatusForbidden, gin.H{"error": "无权查看该用户的统计"})
		return
	}
	mode := c.Query("mode")
	if mode != "" && !round.IsValidMode(round.Mode(mode)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未知的对局模式: " + mode})
		return
	}

	stats, err := GetUserStatistics(username, mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取统计失败"})
		return
	}

	entries := make([]StatisticEntry, 0, len(stats))
	for _, s := range stats {
		entries = append(entries, StatisticEntry{
			Mode:             s.Mode,
			Topic:            s.Topic,
			TotalScore:       s.TotalScore,
			CorrectRate:      s.CorrectRate,
			TotalGamesPlayed: s.TotalGamesPlayed,
		})
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "statistics": entries})
}

// GameEntry 是对局记录查询接口中单条记录的表示
type GameEntry struct {
	Mode        string  `json:"mode"`
	Score       int     `json:"score"`
	CorrectRate float64 `json:"correctRate"`
	Topics      string  `json:"topics"`
	PlayedAt    string  `json:"playedAt"`
}

// GetUserGamesHandler 返回用户最近的对局记录，支持 ?limit=
func GetUserGamesHandler(c *gin.Context) {
	username := c.Param("username")
	if !user.CanActFor(c, username) {
		c.JSON(http.StatusForbidden, gin.H{"error": "无权查看该用户的对局记录"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	games, err := GetUserGames(username, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取对局记录失败"})
		return
	}

	entries := make([]GameEntry, 0, len(games))
	for _, g := range games {
		entries = append(entries, GameEntry{
			Mode:        g.Mode,
			Score:       g.Score,
			CorrectRate: g.CorrectRate,
			Topics:      g.Topics,
			PlayedAt:    g.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "games": entries})
}
