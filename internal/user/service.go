package user

import (
	"errors"
	"fmt"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- 哨兵错误 ---

var (
	// ErrInsufficientFunds 表示扣款金额超过当前余额，扣款被原子地拒绝
	ErrInsufficientFunds = errors.New("硬币余额不足")

	// ErrUserNotFound 表示用户不存在
	ErrUserNotFound = errors.New("用户不存在")

	// ErrInvalidAmount 表示金额不是正整数
	ErrInvalidAmount = errors.New("金额必须为正整数")
)

// EnsureUser 确保指定用户在本服务中有硬币账户，没有则以初始余额创建。
// 幂等：已存在的用户不会被修改。
func EnsureUser(username string, startingCoins int) error {
	if username == "" {
		return ErrUserNotFound
	}

	// 快速路径：Redis中已知的用户直接返回
	if database.IsRedisHealthy() {
		known, err := database.RDB.SIsMember(database.Ctx, KnownUsersKey, username).Result()
		if err == nil && known {
			return nil
		}
	}

	newUser := User{Username: username, Role: "user", Coins: startingCoins}
	err := database.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&newUser).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("无法创建用户 %s: %w", username, err)
	}

	if database.IsRedisHealthy() {
		if err := database.RDB.SAdd(database.Ctx, KnownUsersKey, username).Err(); err != nil {
			fmt.Printf("警告: 无法将用户 %s 写入Redis缓存: %v\n", username, err)
		}
	}
	return nil
}

// GetBalance 返回指定用户的当前硬币余额。
func GetBalance(username string) (int, error) {
	var u User
	err := database.DB.Select("username", "coins").Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("无法读取用户 %s 的余额: %w", username, err)
	}
	return u.Coins, nil
}

// Debit 从指定用户的余额中原子地扣除amount个硬币。
// 扣款通过"条件更新"在存储层一次完成：
//
//	UPDATE users SET coins = coins - ? WHERE username = ? AND coins >= ?
//
// 两个并发的扣款不可能都读到同一份旧余额，余额不足的那一个
// 会因为条件不满足而被整体拒绝（RowsAffected == 0），不存在部分扣款。
func Debit(username string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	// 更新和余额回读在同一个事务中完成，
	// 返回的余额就是本次扣款落账后的余额，不受并发操作干扰。
	var newBalance int
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&User{}).
			Where("username = ? AND coins >= ?", username, amount).
			UpdateColumn("coins", gorm.Expr("coins - ?", amount))
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			// 区分"用户不存在"和"余额不足"
			var u User
			findErr := tx.Select("username").Where("username = ?", username).First(&u).Error
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			if findErr != nil {
				return findErr
			}
			return ErrInsufficientFunds
		}

		return readBalanceTx(tx, username, &newBalance)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInsufficientFunds) {
			return 0, err
		}
		return 0, fmt.Errorf("扣款失败: %w", err)
	}
	return newBalance, nil
}

// readBalanceTx 在事务内回读余额。
func readBalanceTx(tx *gorm.DB, username string, out *int) error {
	var u User
	if err := tx.Select("coins").Where("username = ?", username).First(&u).Error; err != nil {
		return err
	}
	*out = u.Coins
	return nil
}

// Credit 向指定用户的余额中原子地增加amount个硬币，没有上限检查。
func Credit(username string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var newBalance int
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&User{}).
			Where("username = ?", username).
			UpdateColumn("coins", gorm.Expr("coins + ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return readBalanceTx(tx, username, &newBalance)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("入账失败: %w", err)
	}
	return newBalance, nil
}

// Adjust 按带符号的delta调整余额：正数走Credit，负数走Debit。
// 会导致余额为负的调整被整体拒绝。
func Adjust(username string, delta int) (int, error) {
	switch {
	case delta > 0:
		return Credit(username, delta)
	case delta < 0:
		return Debit(username, -delta)
	default:
		return 0, ErrInvalidAmount
	}
}
