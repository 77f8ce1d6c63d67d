package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Hint     HintConfig     `mapstructure:"hint"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	Sqlite SqliteConfig `mapstructure:"sqlite"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SqliteConfig 定义了SQLite的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// GameConfig 定义了回合与硬币经济相关的配置
type GameConfig struct {
	// StartingCoins 是新用户首次出现时的初始硬币余额
	StartingCoins int `mapstructure:"startingCoins"`

	// 各个生命线的硬币价格
	FiftyFiftyCost   int `mapstructure:"fiftyFiftyCost"`
	AudiencePollCost int `mapstructure:"audiencePollCost"`
	ChatHintCost     int `mapstructure:"chatHintCost"`

	// SessionTTL 是一个回合会话在内存中的最长存活时间
	SessionTTL time.Duration `mapstructure:"sessionTTL"`

	// MaxGameRecords 是每个用户保留的历史对局记录上限
	MaxGameRecords int `mapstructure:"maxGameRecords"`
}

// HintConfig 定义了LLM提示服务的配置
type HintConfig struct {
	BaseURL string        `mapstructure:"baseURL"`
	APIKey  string        `mapstructure:"apiKey"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig 定义了身份令牌校验的配置
// 令牌由网关签发，本服务只校验签名并信任其中的声明
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. 设置配置文件名和类型
	v.SetConfigName("config") // 文件名 (不带扩展名)
	v.SetConfigType("yaml")   // 文件类型

	// 2. 添加配置文件搜索路径
	// 可以添加多个路径，Viper会按顺序查找
	v.AddConfigPath("./config") // `config/config.yaml`
	v.AddConfigPath(".")        // `./config.yaml` (如果在根目录)

	// 3. 设置环境变量支持
	// 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:8888
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	// 5. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// 6. 将加载的配置赋值给全局变量
	Cfg = &cfg

	return Cfg, nil
}

// applyDefaults 为缺失的配置项填充默认值
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Database.Sqlite.Path == "" {
		cfg.Database.Sqlite.Path = "rounds.db"
	}
	if cfg.Game.StartingCoins <= 0 {
		cfg.Game.StartingCoins = 200
	}
	if cfg.Game.FiftyFiftyCost <= 0 {
		cfg.Game.FiftyFiftyCost = 100
	}
	if cfg.Game.AudiencePollCost <= 0 {
		cfg.Game.AudiencePollCost = 150
	}
	if cfg.Game.ChatHintCost <= 0 {
		cfg.Game.ChatHintCost = 200
	}
	if cfg.Game.SessionTTL <= 0 {
		cfg.Game.SessionTTL = 10 * time.Minute
	}
	if cfg.Game.MaxGameRecords <= 0 {
		cfg.Game.MaxGameRecords = 100
	}
	if cfg.Hint.Timeout <= 0 {
		cfg.Hint.Timeout = 30 * time.Second
	}
}
