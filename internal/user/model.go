package user

import (
	"time"

	"gorm.io/gorm"
)

// User 定义了用户在SQLite数据库中的持久化模型。
// 身份认证由外部网关完成，本服务只存储与硬币经济相关的最小数据。
type User struct {
	// Username 是用户的主键，来自网关签发的身份令牌。
	Username string `gorm:"primarykey;type:varchar(64)"`

	// PasswordHash 由身份服务写入，本服务从不校验或修改它。
	PasswordHash string

	// Role 是用户的角色，"user" 或 "admin"。
	Role string `gorm:"type:varchar(16);default:user"`

	// Coins 是用户的硬币余额，只能通过Debit/Credit入口变更，
	// 任何时刻都不允许为负。
	Coins int `gorm:"not null;default:0"`

	// 部分gorm.Model，由GORM自动管理
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
