package user

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 在临时目录中打开一个独立的SQLite数据库。
// 测试环境没有Redis，统一把状态标记为不可用以跳过缓存路径。
func setupTestDB(t *testing.T) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate user table: %v", err)
	}

	database.DB = db
	database.UpdateStatus(false, "")
}

func TestEnsureUser_CreatesWithStartingCoins(t *testing.T) {
	setupTestDB(t)

	if err := EnsureUser("alice", 200); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	coins, err := GetBalance("alice")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if coins != 200 {
		t.Fatalf("expected 200 starting coins, got %d", coins)
	}
}

func TestEnsureUser_IsIdempotent(t *testing.T) {
	setupTestDB(t)

	if err := EnsureUser("alice", 200); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if _, err := Debit("alice", 50); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	// 再次确保不会重置余额
	if err := EnsureUser("alice", 200); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	coins, _ := GetBalance("alice")
	if coins != 150 {
		t.Fatalf("expected balance 150 after re-ensure, got %d", coins)
	}
}

func TestDebit_RejectsOverdraft(t *testing.T) {
	setupTestDB(t)
	if err := EnsureUser("alice", 100); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	if _, err := Debit("alice", 150); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// 被拒绝的扣款不得造成部分扣除
	coins, _ := GetBalance("alice")
	if coins != 100 {
		t.Fatalf("expected balance unchanged at 100, got %d", coins)
	}
}

func TestDebit_ExactBalanceGoesToZero(t *testing.T) {
	setupTestDB(t)
	if err := EnsureUser("alice", 100); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	coins, err := Debit("alice", 100)
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if coins != 0 {
		t.Fatalf("expected balance 0, got %d", coins)
	}

	// 余额为0后任何正数扣款都被拒绝
	if _, err := Debit("alice", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds at zero balance, got %v", err)
	}
}

func TestDebit_UnknownUser(t *testing.T) {
	setupTestDB(t)
	if _, err := Debit("ghost", 10); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDebit_RejectsNonPositiveAmount(t *testing.T) {
	setupTestDB(t)
	if _, err := Debit("alice", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for 0, got %v", err)
	}
	if _, err := Debit("alice", -5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestConcurrentDebits_NeverOversell(t *testing.T) {
	setupTestDB(t)
	if err := EnsureUser("alice", 250); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	// 5个并发的100元扣款，余额只够2次成功
	const workers = 5
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = Debit("alice", 100)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if succeeded != 2 {
		t.Fatalf("expected exactly 2 successful debits, got %d", succeeded)
	}

	coins, _ := GetBalance("alice")
	if coins != 50 {
		t.Fatalf("expected final balance 50, got %d", coins)
	}
}

func TestConcurrentDebits_EachReportsOwnBalance(t *testing.T) {
	setupTestDB(t)
	if err := EnsureUser("alice", 250); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	// 5个并发的50元扣款全部成功，每个返回的余额必须是
	// 本次扣款落账后的余额，而不是被后来的扣款覆盖过的读数
	const workers = 5
	var wg sync.WaitGroup
	balances := make([]int, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			balances[i], errs[i] = Debit("alice", 50)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, workers)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("debit #%d failed: %v", i, errs[i])
		}
		seen[balances[i]] = true
	}
	for _, want := range []int{200, 150, 100, 50, 0} {
		if !seen[want] {
			t.Fatalf("expected one debit to report balance %d, got %v", want, balances)
		}
	}
}

func TestAdjust_Dispatch(t *testing.T) {
	setupTestDB(t)
	if err := EnsureUser("alice", 100); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	coins, err := Adjust("alice", 40)
	if err != nil {
		t.Fatalf("Adjust(+40) failed: %v", err)
	}
	if coins != 140 {
		t.Fatalf("expected 140 after credit, got %d", coins)
	}

	coins, err = Adjust("alice", -90)
	if err != nil {
		t.Fatalf("Adjust(-90) failed: %v", err)
	}
	if coins != 50 {
		t.Fatalf("expected 50 after debit, got %d", coins)
	}

	if _, err := Adjust("alice", -100); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := Adjust("alice", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero delta, got %v", err)
	}
}
