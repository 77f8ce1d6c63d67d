package item

import (
	"testing"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"github.com/wikiquiz-go/wikiquiz-round-backend/pkg/tree"
)

// seedRepository 直接构造内存仓库，绕过SQLite和Redis。
func seedRepository(t *testing.T, itemsByTopic map[string][]Item) {
	t.Helper()

	repo := &repository{
		buckets: make(map[string]*topicBucket),
		idToPos: make(map[string]position),
	}
	for topic, items := range itemsByTopic {
		bucket := &topicBucket{}
		weights := make([]float64, 0, len(items))
		for _, it := range items {
			repo.idToPos[it.ItemID] = position{topic: topic, index: len(bucket.ids)}
			bucket.ids = append(bucket.ids, it.ItemID)
			bucket.infos = append(bucket.infos, ItemInfo{Name: it.Name, ImageURL: it.ImageURL, Topic: topic})
			bucket.shown = append(bucket.shown, float64(it.Shown))
			weights = append(weights, CalculateWeightForShown(float64(it.Shown)))
		}
		if len(bucket.ids) > 0 {
			segTree, err := tree.NewSegmentTree(len(bucket.ids))
			if err != nil {
				t.Fatalf("NewSegmentTree failed: %v", err)
			}
			if err := segTree.Rebuild(weights); err != nil {
				t.Fatalf("Rebuild failed: %v", err)
			}
			bucket.weightsTree = segTree
		}
		repo.buckets[topic] = bucket
	}
	globalRepository = repo
}

func cityItems(n int) []Item {
	names := []string{"Madrid", "Tokyo", "Cairo", "Lima", "Oslo", "Accra", "Quito", "Hanoi"}
	items := make([]Item, 0, n)
	for i := 0; i < n && i < len(names); i++ {
		items = append(items, Item{
			ItemID:   "Q" + names[i],
			Name:     names[i],
			ImageURL: "https://img.example/" + names[i] + ".jpg",
		})
	}
	return items
}

func TestSample_UnknownTopic(t *testing.T) {
	seedRepository(t, map[string][]Item{"city": cityItems(4)})
	if _, err := Sample("planet", nil, 4, false); err != ErrUnknownTopic {
		t.Fatalf("expected ErrUnknownTopic, got %v", err)
	}
}

func TestSample_EmptyTopic(t *testing.T) {
	seedRepository(t, map[string][]Item{"city": cityItems(4)})
	if _, err := Sample("flag", nil, 4, false); err != ErrNoContentAvailable {
		t.Fatalf("expected ErrNoContentAvailable, got %v", err)
	}
}

func TestSample_ReturnsUniqueNames(t *testing.T) {
	seedRepository(t, map[string][]Item{"city": cityItems(8)})

	for i := 0; i < 50; i++ {
		result, err := Sample("city", nil, 4, false)
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		if len(result) != 4 {
			t.Fatalf("expected 4 items, got %d", len(result))
		}
		seen := make(map[string]bool)
		for _, s := range result {
			if seen[s.Name] {
				t.Fatalf("duplicate name %q in sample", s.Name)
			}
			seen[s.Name] = true
		}
	}
}

func TestSample_ShortfallWhenTopicIsSmall(t *testing.T) {
	seedRepository(t, map[string][]Item{"city": cityItems(2)})

	result, err := Sample("city", nil, 4, false)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result))
	}
}

func TestSample_ExcludesUsedImages(t *testing.T) {
	seedRepository(t, map[string][]Item{"city": cityItems(6)})

	excluded := []string{
		"https://img.example/Madrid.jpg",
		"https://img.example/Tokyo.jpg",
	}
	excludedSet := map[string]bool{excluded[0]: true, excluded[1]: true}

	for i := 0; i < 50; i++ {
		result, err := Sample("city", excluded, 4, false)
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		for _, s := range result {
			if excludedSet[s.ImageURL] {
				t.Fatalf("sample contained excluded image %q", s.ImageURL)
			}
		}
	}
}

func TestSample_FailsOpenWhenEverythingExcluded(t *testing.T) {
	seedRepository(t, map[string][]Item{"city": cityItems(4)})

	excluded := make([]string, 0, 4)
	for _, it := range cityItems(4) {
		excluded = append(excluded, it.ImageURL)
	}

	// 排除条件把合格子集排空时应被忽略，抽样照常进行
	result, err := Sample("city", excluded, 4, false)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(result) != 4 {
		t.Fatalf("expected fail-open sample of 4 items, got %d", len(result))
	}
}

func TestSample_FreshPathStillHonorsExclusion(t *testing.T) {
	items := cityItems(6)
	// 把前两个素材的曝光调高，让新鲜路径强烈偏向其余素材
	items[0].Shown = 1000
	items[1].Shown = 1000
	seedRepository(t, map[string][]Item{"city": items})

	excluded := []string{items[2].ImageURL}
	for i := 0; i < 50; i++ {
		result, err := Sample("city", excluded, 4, true)
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		for _, s := range result {
			if s.ImageURL == excluded[0] {
				t.Fatalf("fresh sample contained excluded image %q", s.ImageURL)
			}
		}
	}
}

func TestMarkServed_BumpsExposureAndWeights(t *testing.T) {
	// 测试环境没有Redis，显式标记为不可用以跳过镜像写入
	database.UpdateStatus(false, "")

	seedRepository(t, map[string][]Item{"city": cityItems(4)})
	bucket := globalRepository.buckets["city"]
	totalBefore := bucket.weightsTree.TotalSum()

	MarkServed("city", []string{"QMadrid", "QTokyo"})

	if got := bucket.shown[0]; got != 1 {
		t.Fatalf("expected shown[0]=1, got %f", got)
	}
	if got := bucket.shown[1]; got != 1 {
		t.Fatalf("expected shown[1]=1, got %f", got)
	}
	if got := bucket.shown[2]; got != 0 {
		t.Fatalf("expected shown[2] untouched, got %f", got)
	}
	if totalAfter := bucket.weightsTree.TotalSum(); totalAfter >= totalBefore {
		t.Fatalf("expected total weight to drop after exposure, %f -> %f", totalBefore, totalAfter)
	}
}

func TestMarkServed_IgnoresForeignIDs(t *testing.T) {
	database.UpdateStatus(false, "")
	seedRepository(t, map[string][]Item{"city": cityItems(4)})

	// 未知ID与错配主题都应被静默跳过
	MarkServed("city", []string{"QNowhere"})
	MarkServed("flag", []string{"QMadrid"})

	bucket := globalRepository.buckets["city"]
	for i, shown := range bucket.shown {
		if shown != 0 {
			t.Fatalf("expected shown[%d]=0, got %f", i, shown)
		}
	}
}

func TestAvailableTopics_OnlyNonEmpty(t *testing.T) {
	seedRepository(t, map[string][]Item{
		"city": cityItems(4),
		"flag": {},
	})

	available := AvailableTopics()
	if len(available) != 1 || available[0] != "city" {
		t.Fatalf("expected [city], got %v", available)
	}
}
