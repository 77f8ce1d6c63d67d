package round

import (
	"fmt"
	"sync"
	"time"

	"github.com/wikiquiz-go/wikiquiz-round-backend/pkg/lifecycle"
)

// Session 是单个回合的内存会话：回合本身、所有者、
// 以及四条生命线的使用状态。每条生命线在一个回合内至多使用一次，
// 标志位一旦为true就不再复位，直到新的回合开始（即新的Session）。
type Session struct {
	mu sync.Mutex

	Round    *Round
	Username string

	fiftyFiftyUsed bool
	audienceUsed   bool
	friendUsed     bool
	chatUsed       bool

	// 已用生命线的结果缓存，用于幂等地响应重复调用
	hiddenOptions []int
	pollResult    map[string]int
	friendName    string

	expiresAt time.Time
}

// sessionStore 是进程内的回合会话表。
// 每个对局会话彼此独立，不需要任何进程级单例之外的协调。
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var globalStore = &sessionStore{
	sessions: make(map[string]*Session),
}

// RegisterSession 将一个新下发的回合登记到会话表中。
func RegisterSession(r *Round, username string, ttl time.Duration) *Session {
	s := &Session{
		Round:     r,
		Username:  username,
		expiresAt: time.Now().Add(ttl),
	}
	globalStore.mu.Lock()
	globalStore.sessions[r.ID] = s
	globalStore.mu.Unlock()
	return s
}

// GetSession 按回合ID查找会话；过期或不存在时返回ErrRoundNotFound。
func GetSession(roundID string) (*Session, error) {
	globalStore.mu.RLock()
	s, ok := globalStore.sessions[roundID]
	globalStore.mu.RUnlock()
	if !ok || time.Now().After(s.expiresAt) {
		return nil, ErrRoundNotFound
	}
	return s, nil
}

// GetSessionForOwner 按回合ID查找会话并校验所有权。
// 会话存在但所有者不匹配时返回ErrNotSessionOwner。
func GetSessionForOwner(roundID, username string) (*Session, error) {
	s, err := GetSession(roundID)
	if err != nil {
		return nil, err
	}
	if s.Username != username {
		return nil, ErrNotSessionOwner
	}
	return s, nil
}

// RemoveSession 将一个会话从会话表中移除（回合结束或被放弃）。
func RemoveSession(roundID string) {
	globalStore.mu.Lock()
	delete(globalStore.sessions, roundID)
	globalStore.mu.Unlock()
}

// sweepExpired 清理所有已过期的会话，返回清理数量。
func sweepExpired(now time.Time) int {
	globalStore.mu.Lock()
	defer globalStore.mu.Unlock()

	removed := 0
	for id, s := range globalStore.sessions {
		if now.After(s.expiresAt) {
			delete(globalStore.sessions, id)
			removed++
		}
	}
	return removed
}

const janitorInterval = 1 * time.Minute

// StartSessionJanitor 启动一个后台Goroutine定期清理过期会话。
// 它接收一个lifecycle.Handle来管理其生命周期。
func StartSessionJanitor(handle *lifecycle.Handle) {
	defer handle.Close() // 确保在退出时通知管理器
	fmt.Println("回合会话清理器已启动。")

	for {
		// 使用可中断的休眠，使循环能在收到停机信号时立刻退出
		if err := handle.Sleep(janitorInterval); err != nil {
			fmt.Println("会话清理器: 休眠被中断，正在关闭...")
			return
		}

		if removed := sweepExpired(time.Now()); removed > 0 {
			fmt.Printf("会话清理器: 清理了 %d 个过期回合会话。\n", removed)
		}
	}
}
