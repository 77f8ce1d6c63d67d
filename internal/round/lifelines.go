package round

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/hint"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/user"
)

// hintClient 是chat生命线使用的LLM提示服务客户端，在启动时注入
var hintClient hint.Client

// SetHintClient 注入LLM提示服务客户端。
func SetHintClient(c hint.Client) {
	hintClient = c
}

// --- 生命线结果 ---

// FiftyFiftyResult 是50/50生命线的结果
type FiftyFiftyResult struct {
	// HiddenOptions 是应当被隐藏的两个选项在Items中的下标，
	// 永远不包含目标素材的下标
	HiddenOptions []int
	AlreadyUsed   bool
	Coins         int
}

// AudienceResult 是观众投票生命线的结果
type AudienceResult struct {
	// Distribution 是各选项名称到百分比的映射，总和为100，
	// 正确答案的占比严格最高。这是合成的倾向性展示，不是真实投票。
	Distribution map[string]int
	AlreadyUsed  bool
	Coins        int
}

// FriendResult 是打电话求助生命线的结果
type FriendResult struct {
	Friend      string
	AlreadyUsed bool
}

// ChatResult 是LLM提示聊天生命线的结果
type ChatResult struct {
	Answer string
	Coins  int
}

// currentBalance 读取会话所有者的余额，失败时返回-1（信息性字段，不阻塞响应）。
func currentBalance(username string) int {
	coins, err := user.GetBalance(username)
	if err != nil {
		return -1
	}
	return coins
}

// UseFiftyFifty 消耗50/50生命线：扣款成功后随机隐藏三个错误选项中的两个。
// 重复调用是幂等的，返回第一次计算的结果，不会二次扣款。
// 扣款失败（余额不足）时会话状态不变，标志保持false。
func (s *Session) UseFiftyFifty() (*FiftyFiftyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fiftyFiftyUsed {
		return &FiftyFiftyResult{
			HiddenOptions: s.hiddenOptions,
			AlreadyUsed:   true,
			Coins:         currentBalance(s.Username),
		}, nil
	}

	coins, err := user.Debit(s.Username, LifelineFiftyFifty.Cost())
	if err != nil {
		return nil, err
	}

	// 收集所有错误选项的下标，随机挑两个隐藏
	var wrong []int
	for i, it := range s.Round.Items {
		if it.Name != s.Round.Target.Name {
			wrong = append(wrong, i)
		}
	}
	rand.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })
	if len(wrong) > 2 {
		wrong = wrong[:2]
	}
	sort.Ints(wrong)

	s.fiftyFiftyUsed = true
	s.hiddenOptions = wrong

	return &FiftyFiftyResult{HiddenOptions: wrong, Coins: coins}, nil
}

// UseAudiencePoll 消耗观众投票生命线：扣款成功后生成一份合成的投票分布。
func (s *Session) UseAudiencePoll() (*AudienceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audienceUsed {
		return &AudienceResult{
			Distribution: s.pollResult,
			AlreadyUsed:  true,
			Coins:        currentBalance(s.Username),
		}, nil
	}

	coins, err := user.Debit(s.Username, LifelineAudience.Cost())
	if err != nil {
		return nil, err
	}

	s.audienceUsed = true
	s.pollResult = buildPollDistribution(s.Round)

	return &AudienceResult{Distribution: s.pollResult, Coins: coins}, nil
}

// buildPollDistribution 生成一份归一化到100的合成投票分布，
// 正确答案的权重在归一化之后仍然严格最高。
func buildPollDistribution(r *Round) map[string]int {
	weights := make(map[string]int, len(r.Items))
	maxWrong := 0
	for _, it := range r.Items {
		if it.Name == r.Target.Name {
			continue
		}
		w := 5 + rand.Intn(21) // [5, 25]
		weights[it.Name] = w
		if w > maxWrong {
			maxWrong = w
		}
	}
	// 正确答案严格压过所有错误选项
	weights[r.Target.Name] = maxWrong + 5 + rand.Intn(26)

	total := 0
	for _, w := range weights {
		total += w
	}

	distribution := make(map[string]int, len(weights))
	allocated := 0
	for name, w := range weights {
		if name == r.Target.Name {
			continue
		}
		pct := w * 100 / total
		distribution[name] = pct
		allocated += pct
	}
	// 取整的余数全部归给正确答案，保持其严格最高
	distribution[r.Target.Name] = 100 - allocated

	return distribution
}

// UseFriendCall 消耗打电话求助生命线。没有硬币成本。
// 标志在玩家确认好友选择时置位，而不是在打开选择框时——
// 只打开再关闭选择框不消耗生命线。
func (s *Session) UseFriendCall(friend string) (*FriendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.friendUsed {
		return &FriendResult{Friend: s.friendName, AlreadyUsed: true}, nil
	}

	s.friendUsed = true
	s.friendName = friend

	return &FriendResult{Friend: friend}, nil
}

// UseChatHint 使用LLM提示聊天。第一次调用扣款并解锁，
// 同一回合内的后续消息不再扣款。提示服务被指示绝不直接
// 透露答案，除非玩家已经猜对。
func (s *Session) UseChatHint(ctx context.Context, message string) (*ChatResult, error) {
	s.mu.Lock()
	if !s.chatUsed {
		if _, err := user.Debit(s.Username, LifelineChat.Cost()); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.chatUsed = true
	}
	topic := s.Round.Topic
	targetName := s.Round.Target.Name
	username := s.Username
	s.mu.Unlock()

	// LLM调用不持有会话锁
	answer, err := hintClient.Ask(ctx, hint.Request{
		System: fmt.Sprintf(
			"You are a hint assistant in a picture trivia game. The current topic is %q and the correct answer is %q. "+
				"Give the player helpful hints about the answer, but never reveal the answer itself "+
				"unless the player has already guessed it correctly.",
			topic, targetName),
		Question: message,
	})
	if err != nil {
		return nil, err
	}

	return &ChatResult{Answer: answer, Coins: currentBalance(username)}, nil
}
