package user

// 定义与用户相关的Redis键名
const (
	// KnownUsersKey 是一个Set，用于快速判断一个用户名是否已经在
	// 本服务中建立过硬币账户。
	// Key: known_users
	// Member: username
	KnownUsersKey = "known_users"
)
