package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CoinsResponse 是余额查询接口的响应体
type CoinsResponse struct {
	Username string `json:"username"`
	Coins    int    `json:"coins"`
}

// AdjustCoinsRequestBody 定义了余额调整接口的请求体
type AdjustCoinsRequestBody struct {
	Username string `json:"username" binding:"required"`
	Amount   int    `json:"amount" binding:"required"`
}

// AdjustCoinsResponse 是余额调整接口的响应体
type AdjustCoinsResponse struct {
	Username   string `json:"username"`
	CoinsAdded int    `json:"coinsAdded"`
	NewBalance int    `json:"newBalance"`
}

// GetUserCoins 返回指定用户的当前硬币余额
func GetUserCoins(c *gin.Context) {
	username := c.Param("username")
	if !CanActFor(c, username) {
		c.JSON(http.StatusForbidden, gin.H{"error": "无权查看该用户的余额"})
		return
	}

	coins, err := GetBalance(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "找不到用户 " + username})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取余额失败"})
		return
	}

	c.JSON(http.StatusOK, CoinsResponse{Username: username, Coins: coins})
}

// AdjustCoins 按带符号的金额调整用户余额（回合奖励、活动发放等）。
// 会导致余额为负的调整返回400，余额保持不变。
func AdjustCoins(c *gin.Context) {
	var body AdjustCoinsRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	if !CanActFor(c, body.Username) {
		c.JSON(http.StatusForbidden, gin.H{"error": "无权调整该用户的余额"})
		return
	}

	newBalance, err := Adjust(body.Username, body.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "调整后余额将为负数"})
		case errors.Is(err, ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "找不到用户 " + body.Username})
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "金额不能为零"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "调整余额失败"})
		}
		return
	}

	c.JSON(http.StatusOK, AdjustCoinsResponse{
		Username:   body.Username,
		CoinsAdded: body.Amount,
		NewBalance: newBalance,
	})
}
