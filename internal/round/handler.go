package round

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/hint"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/item"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/config"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/user"
)

// --- API响应模型 ---

type RoundItemResponse struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type GetRoundAPIResponse struct {
	RoundID       string              `json:"roundId"`
	Topic         string              `json:"topic"`
	Items         []RoundItemResponse `json:"items"`
	ItemWithImage RoundItemResponse   `json:"itemWithImage"`
	Signature     string              `json:"signature"`
}

// splitParam 将逗号分隔的query参数拆成非空字符串切片
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GetRound 处理新回合请求：选主题、抽素材、指定目标、登记会话
func GetRound(c *gin.Context) {
	topics := splitParam(c.Query("topics"))
	usedImages := splitParam(c.Query("usedImages"))
	mode := Mode(c.DefaultQuery("mode", string(ModeRounds)))

	r, err := NextRound(topics, mode, usedImages)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTopics), errors.Is(err, ErrInvalidMode), errors.Is(err, item.ErrUnknownTopic):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid topics"})
		case errors.Is(err, item.ErrNoContentAvailable):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "该主题暂时没有可用素材"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "获取回合失败"})
		}
		return
	}

	username, _ := user.IdentityFromContext(c)
	RegisterSession(r, username, config.Cfg.Game.SessionTTL)

	items := make([]RoundItemResponse, len(r.Items))
	for i, it := range r.Items {
		items[i] = RoundItemResponse{Name: it.Name, ImageURL: it.ImageURL}
	}

	c.JSON(http.StatusOK, GetRoundAPIResponse{
		RoundID:       r.ID,
		Topic:         r.Topic,
		Items:         items,
		ItemWithImage: RoundItemResponse{Name: r.Target.Name, ImageURL: r.Target.ImageURL},
		Signature:     r.Signature,
	})
}

// sessionForRequest 取出会话并校验所有权，失败时直接写好响应
func sessionForRequest(c *gin.Context) *Session {
	username, _ := user.IdentityFromContext(c)
	s, err := GetSessionForOwner(c.Param("id"), username)
	switch {
	case errors.Is(err, ErrRoundNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrRoundNotFound.Error()})
		return nil
	case errors.Is(err, ErrNotSessionOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": ErrNotSessionOwner.Error()})
		return nil
	}
	return s
}

// respondLifelineError 将生命线服务错误映射为HTTP响应。
// 余额不足是用户可见的、非致命的拒绝，不是异常链。
func respondLifelineError(c *gin.Context, username string, err error) {
	switch {
	case errors.Is(err, user.ErrInsufficientFunds):
		coins, _ := user.GetBalance(username)
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient funds", "coins": coins})
	case errors.Is(err, hint.ErrUpstreamUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "提示服务暂时不可用，请稍后重试"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生命线处理失败"})
	}
}

// UseFiftyFiftyHandler 处理50/50生命线请求
func UseFiftyFiftyHandler(c *gin.Context) {
	s := sessionForRequest(c)
	if s == nil {
		return
	}

	result, err := s.UseFiftyFifty()
	if err != nil {
		respondLifelineError(c, s.Username, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"hiddenOptions": result.HiddenOptions,
		"alreadyUsed":   result.AlreadyUsed,
		"coins":         result.Coins,
	})
}

// UseAudiencePollHandler 处理观众投票生命线请求
func UseAudiencePollHandler(c *gin.Context) {
	s := sessionForRequest(c)
	if s == nil {
		return
	}

	result, err := s.UseAudiencePoll()
	if err != nil {
		respondLifelineError(c, s.Username, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"distribution": result.Distribution,
		"alreadyUsed":  result.AlreadyUsed,
		"coins":        result.Coins,
	})
}

// FriendCallRequestBody 定义了打电话求助的请求体
type FriendCallRequestBody struct {
	Friend string `json:"friend" binding:"required"`
}

// UseFriendCallHandler 处理打电话求助生命线请求。
// 该请求在玩家确认好友选择时发出。
func UseFriendCallHandler(c *gin.Context) {
	s := sessionForRequest(c)
	if s == nil {
		return
	}

	var body FriendCallRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	result, err := s.UseFriendCall(body.Friend)
	if err != nil {
		respondLifelineError(c, s.Username, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"friend":      result.Friend,
		"alreadyUsed": result.AlreadyUsed,
		"used":        true,
	})
}

// ChatRequestBody 定义了提示聊天的请求体
type ChatRequestBody struct {
	Message string `json:"message" binding:"required"`
}

// UseChatHandler 处理LLM提示聊天请求。
// 首次调用扣款并解锁，同一回合内后续消息免费。
func UseChatHandler(c *gin.Context) {
	s := sessionForRequest(c)
	if s == nil {
		return
	}

	var body ChatRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	result, err := s.UseChatHint(c.Request.Context(), body.Message)
	if err != nil {
		respondLifelineError(c, s.Username, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answer": result.Answer,
		"coins":  result.Coins,
	})
}
