package item

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTopics 返回服务支持的主题静态枚举
func GetTopics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": Topics()})
}

// GetAvailableTopics 返回至少有一个素材的主题列表
func GetAvailableTopics(c *gin.Context) {
	available := AvailableTopics()
	if available == nil {
		available = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"availableTopics": available})
}
