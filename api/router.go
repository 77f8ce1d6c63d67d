package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/item"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/round"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/stats"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/user"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		// 主题枚举，无需身份
		api.GET("/topics", item.GetTopics)
		api.GET("/availableTopics", item.GetAvailableTopics)

		// 回合相关的路由组 /api/round
		roundRoutes := api.Group("/round", user.RequireIdentity())
		{
			roundRoutes.GET("", round.GetRound)

			// 生命线都绑定在一个已存在的回合会话上
			lifelines := roundRoutes.Group("/:id/lifelines")
			{
				lifelines.POST("/fifty-fifty", round.UseFiftyFiftyHandler)
				lifelines.POST("/audience", round.UseAudiencePollHandler)
				lifelines.POST("/friend", round.UseFriendCallHandler)
				lifelines.POST("/chat", round.UseChatHandler)
			}
		}

		// 对局提交 /api/games
		api.POST("/games", user.RequireIdentity(), stats.SubmitGame)

		// 用户相关的路由组 /api/users
		userRoutes := api.Group("/users", user.RequireIdentity())
		{
			userRoutes.GET("/:username/coins", user.GetUserCoins)
			userRoutes.GET("/:username/statistics", stats.GetUserStatisticsHandler)
			userRoutes.GET("/:username/games", stats.GetUserGamesHandler)
		}

		// 余额调整（回合奖励结算等）
		api.POST("/coins/adjust", user.RequireIdentity(), user.AdjustCoins)
	}
}
