package stats

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/config"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStatsTest(t *testing.T, maxRecords int) {
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

	if err := db.AutoMigrate(&GameRecord{}, &UserStatistic{}); err != nil {
		t.Fatalf("failed to migrate stats tables: %v", err)
	}

	database.DB = db
	config.Cfg = &config.Config{
		Game: config.GameConfig{MaxGameRecords: maxRecords},
	}
}

func statFor(t *testing.T, username, mode, topic string) UserStatistic {
	t.Helper()
	var s UserStatistic
	err := database.DB.Where("username = ? AND mode = ? AND topic = ?", username, mode, topic).First(&s).Error
	if err != nil {
		t.Fatalf("statistic (%s,%s,%s) not found: %v", username, mode, topic, err)
	}
	return s
}

func TestRecordGame_RejectsEmptyGame(t *testing.T) {
	setupStatsTest(t, 100)
	if _, err := RecordGame("alice", "rounds", nil); !errors.Is(err, ErrNoOutcomes) {
		t.Fatalf("expected ErrNoOutcomes, got %v", err)
	}
}

func TestRecordGame_SummaryAndBuckets(t *testing.T) {
	setupStatsTest(t, 100)

	outcomes := []QuestionOutcome{
		{Topic: "city", IsCorrect: true, PointsIncrement: 10},
		{Topic: "city", IsCorrect: false, PointsIncrement: 10},
		{Topic: "flag", IsCorrect: true, PointsIncrement: 15},
		{Topic: "flag", IsCorrect: true, PointsIncrement: 15},
	}
	summary, err := RecordGame("alice", "rounds", outcomes)
	if err != nil {
		t.Fatalf("RecordGame failed: %v", err)
	}
	if summary.Score != 40 {
		t.Fatalf("expected score 40, got %d", summary.Score)
	}
	if math.Abs(summary.CorrectRate-0.75) > 1e-9 {
		t.Fatalf("expected correct rate 0.75, got %f", summary.CorrectRate)
	}

	city := statFor(t, "alice", "rounds", "city")
	if city.TotalScore != 10 || city.TotalGamesPlayed != 1 {
		t.Fatalf("unexpected city bucket: %+v", city)
	}
	if math.Abs(city.CorrectRate-0.5) > 1e-9 {
		t.Fatalf("expected city rate 0.5, got %f", city.CorrectRate)
	}

	flag := statFor(t, "alice", "rounds", "flag")
	if flag.TotalScore != 30 || math.Abs(flag.CorrectRate-1.0) > 1e-9 {
		t.Fatalf("unexpected flag bucket: %+v", flag)
	}

	all := statFor(t, "alice", "rounds", AllBucket)
	if all.TotalScore != 40 || all.TotalGamesPlayed != 1 {
		t.Fatalf("unexpected all bucket: %+v", all)
	}
	if math.Abs(all.CorrectRate-0.75) > 1e-9 {
		t.Fatalf("expected all-bucket rate 0.75, got %f", all.CorrectRate)
	}
}

func TestRecordGame_IncrementalMeanAcrossGames(t *testing.T) {
	setupStatsTest(t, 100)

	// 第一局 city 正确率 1.0，第二局 0.5，滚动平均应为 0.75
	games := [][]QuestionOutcome{
		{
			{Topic: "city", IsCorrect: true, PointsIncrement: 10},
			{Topic: "city", IsCorrect: true, PointsIncrement: 10},
		},
		{
			{Topic: "city", IsCorrect: true, PointsIncrement: 10},
			{Topic: "city", IsCorrect: false, PointsIncrement: 10},
		},
	}
	for _, g := range games {
		if _, err := RecordGame("alice", "rounds", g); err != nil {
			t.Fatalf("RecordGame failed: %v", err)
		}
	}

	city := statFor(t, "alice", "rounds", "city")
	if city.TotalGamesPlayed != 2 {
		t.Fatalf("expected 2 games, got %d", city.TotalGamesPlayed)
	}
	if city.TotalScore != 30 {
		t.Fatalf("expected total score 30, got %d", city.TotalScore)
	}
	if math.Abs(city.CorrectRate-0.75) > 1e-9 {
		t.Fatalf("expected rolling mean 0.75, got %f", city.CorrectRate)
	}
}

func TestRecordGame_BucketsAreIsolatedByModeAndUser(t *testing.T) {
	setupStatsTest(t, 100)

	g := []QuestionOutcome{{Topic: "city", IsCorrect: true, PointsIncrement: 10}}
	if _, err := RecordGame("alice", "rounds", g); err != nil {
		t.Fatalf("RecordGame failed: %v", err)
	}
	if _, err := RecordGame("alice", "time", g); err != nil {
		t.Fatalf("RecordGame failed: %v", err)
	}
	if _, err := RecordGame("bob", "rounds", g); err != nil {
		t.Fatalf("RecordGame failed: %v", err)
	}

	for _, key := range [][2]string{{"alice", "rounds"}, {"alice", "time"}, {"bob", "rounds"}} {
		s := statFor(t, key[0], key[1], "city")
		if s.TotalGamesPlayed != 1 {
			t.Fatalf("bucket (%s,%s) leaked games: %+v", key[0], key[1], s)
		}
	}
}

func TestRecordGame_EvictsSingleOldestPastCap(t *testing.T) {
	setupStatsTest(t, 3)

	// 每局得分不同，用于分辨被淘汰的到底是哪一条记录
	scores := []int{10, 20, 30, 40}
	for i, score := range scores {
		g := []QuestionOutcome{{Topic: "city", IsCorrect: true, PointsIncrement: score}}
		if _, err := RecordGame("alice", "rounds", g); err != nil {
			t.Fatalf("RecordGame #%d failed: %v", i, err)
		}
		// 保证created_at严格递增
		time.Sleep(2 * time.Millisecond)
	}

	var records []GameRecord
	if err := database.DB.Where("username = ?", "alice").Find(&records).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected cap of 3 records, got %d", len(records))
	}

	// 被淘汰的必须是最早的一条，其余保持原样
	surviving := make(map[int]bool, len(records))
	for _, r := range records {
		surviving[r.Score] = true
	}
	if surviving[10] {
		t.Fatalf("oldest record (score 10) should have been evicted, survivors: %v", surviving)
	}
	for _, want := range []int{20, 30, 40} {
		if !surviving[want] {
			t.Fatalf("record with score %d should have survived, survivors: %v", want, surviving)
		}
	}
}

func TestRecordGame_EvictionIsPerUser(t *testing.T) {
	setupStatsTest(t, 2)

	g := []QuestionOutcome{{Topic: "city", IsCorrect: true, PointsIncrement: 1}}
	for i := 0; i < 3; i++ {
		if _, err := RecordGame("alice", "rounds", g); err != nil {
			t.Fatalf("RecordGame failed: %v", err)
		}
	}
	if _, err := RecordGame("bob", "rounds", g); err != nil {
		t.Fatalf("RecordGame failed: %v", err)
	}

	var bobCount int64
	database.DB.Model(&GameRecord{}).Where("username = ?", "bob").Count(&bobCount)
	if bobCount != 1 {
		t.Fatalf("bob's records should be untouched by alice's eviction, got %d", bobCount)
	}
}

func TestGetUserGames_OrderAndLimit(t *testing.T) {
	setupStatsTest(t, 100)

	for i := 0; i < 5; i++ {
		g := []QuestionOutcome{{Topic: "city", IsCorrect: true, PointsIncrement: i}}
		if _, err := RecordGame("alice", "rounds", g); err != nil {
			t.Fatalf("RecordGame failed: %v", err)
		}
	}

	games, err := GetUserGames("alice", 3)
	if err != nil {
		t.Fatalf("GetUserGames failed: %v", err)
	}
	if len(games) != 3 {
		t.Fatalf("expected 3 games, got %d", len(games))
	}
}

func TestGetUserStatistics_FilterByMode(t *testing.T) {
	setupStatsTest(t, 100)

	g := []QuestionOutcome{{Topic: "city", IsCorrect: true, PointsIncrement: 10}}
	if _, err := RecordGame("alice", "rounds", g); err != nil {
		t.Fatalf("RecordGame failed: %v", err)
	}
	if _, err := RecordGame("alice", "time", g); err != nil {
		t.Fatalf("RecordGame failed: %v", err)
	}

	all, err := GetUserStatistics("alice", "")
	if err != nil {
		t.Fatalf("GetUserStatistics failed: %v", err)
	}
	// 每个模式有 city 和 all 两个桶
	if len(all) != 4 {
		t.Fatalf("expected 4 buckets across modes, got %d", len(all))
	}

	rounds, err := GetUserStatistics("alice", "rounds")
	if err != nil {
		t.Fatalf("GetUserStatistics failed: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 buckets for rounds mode, got %d", len(rounds))
	}
	for _, s := range rounds {
		if s.Mode != "rounds" {
			t.Fatalf("mode filter leaked bucket: %+v", s)
		}
	}
}
