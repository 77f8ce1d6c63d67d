package round

import (
	"errors"
	"time"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/item"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/config"
)

// Mode 定义了对局模式的枚举类型
type Mode string

const (
	// ModeRounds 表示固定回合数模式
	ModeRounds Mode = "rounds"
	// ModeTime 表示限时模式
	ModeTime Mode = "time"
	// ModeHide 表示图片渐显模式，回合有时间盒，抽样偏向新鲜素材
	ModeHide Mode = "hide"
)

// IsValidMode 检查一个模式字符串是否合法
func IsValidMode(mode Mode) bool {
	switch mode {
	case ModeRounds, ModeTime, ModeHide:
		return true
	}
	return false
}

// Lifeline 定义了生命线种类的枚举类型。
// 使用带类型的枚举而不是裸字符串分发，未知种类在编译期就没有入口。
type Lifeline int

const (
	LifelineFiftyFifty Lifeline = iota
	LifelineAudience
	LifelineFriend
	LifelineChat
)

// Cost 返回该生命线的硬币成本。打电话求助是免费的。
func (l Lifeline) Cost() int {
	switch l {
	case LifelineFiftyFifty:
		return config.Cfg.Game.FiftyFiftyCost
	case LifelineAudience:
		return config.Cfg.Game.AudiencePollCost
	case LifelineChat:
		return config.Cfg.Game.ChatHintCost
	}
	return 0
}

// Round 是一个回合的完整描述：一个主题、至多四个候选素材、
// 其中一个是需要玩家识别的目标。回合是短暂的，只存在于内存会话中。
type Round struct {
	// ID 是回合的唯一标识 (UUIDv7)
	ID string

	// Topic 是本回合的主题
	Topic string

	// Mode 是本回合所属的对局模式
	Mode Mode

	// Items 是候选素材，按内容库返回的顺序排列，名称互不相同。
	// 任何额外的洗牌都是展示层的事情，这里不做。
	Items []item.SampledItem

	// Target 是Items中被展示图片的那一个，玩家需要识别它
	Target item.SampledItem

	// Signature 是对(ID, Topic, Target.ID)的HMAC签名
	Signature string

	CreatedAt time.Time
}

// --- 哨兵错误 ---

var (
	// ErrInvalidTopics 表示主题列表为空或包含未知主题
	ErrInvalidTopics = errors.New("主题列表为空或不合法")

	// ErrInvalidMode 表示未知的对局模式
	ErrInvalidMode = errors.New("未知的对局模式")

	// ErrRoundNotFound 表示回合会话不存在或已过期
	ErrRoundNotFound = errors.New("回合不存在或已过期")

	// ErrNotSessionOwner 表示请求者不是该回合的所有者
	ErrNotSessionOwner = errors.New("无权操作他人的回合")
)
