package item

import "gorm.io/gorm"

// Item 定义了数据库中题目素材的数据结构。
// 素材由外部的内容摄取服务批量写入，本服务只读取它们，
// 唯一会被更新的字段是曝光计数 Shown。
type Item struct {
	// gorm.Model 包含 ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	// ItemID 是素材的稳定外部标识，例如 "Q2807" (Wikidata实体ID)
	// 我们将使用它作为业务逻辑中的主键
	ItemID string `gorm:"uniqueIndex;not null" json:"id"`

	// Name 是素材的展示名称，例如 "Madrid"
	Name string `json:"name"`

	// ImageURL 是素材图片的完整URL
	ImageURL string `json:"imageUrl"`

	// Topic 是素材所属的主题标签，例如 "city"
	Topic string `gorm:"index" json:"topic"`

	// Shown 是素材作为回合候选项被展示过的次数，用于"新鲜优先"抽样
	Shown int `json:"shown"`
}

// --- 主题枚举 ---

// AllTopics 是服务支持的全部主题标签的静态枚举
var AllTopics = []string{"city", "flag", "animal", "athlete", "singer"}

// IsValidTopic 检查一个主题标签是否在静态枚举中
func IsValidTopic(topic string) bool {
	for _, t := range AllTopics {
		if t == topic {
			return true
		}
	}
	return false
}
