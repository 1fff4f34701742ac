package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omar4917/real-estate-project/internal/domain"
)

type fakeLister struct {
	cats  []domain.Category
	calls int32
	err   error
}

func (f *fakeLister) List(context.Context) ([]domain.Category, error) {
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(2 * time.Millisecond) // widen the rebuild window
	return f.cats, f.err
}

func tree() []domain.Category {
	return []domain.Category{
		{ID: "P"},
		{ID: "C1", ParentID: "P"},
		{ID: "C2", ParentID: "P"},
		{ID: "C3", ParentID: "C1"},
		{ID: "other"},
	}
}

func sorted(ids []string) []string {
	cp := append([]string(nil), ids...)
	sort.Strings(cp)
	return cp
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCollectSubtree(t *testing.T) {
	g := Build(tree())
	got := CollectSubtree(g, "P")
	if got[0] != "P" {
		t.Fatalf("root must be discovered first, got %v", got)
	}
	if want := []string{"C1", "C2", "C3", "P"}; !equal(sorted(got), want) {
		t.Fatalf("subtree=%v want %v", sorted(got), want)
	}
	if leaf := CollectSubtree(g, "C3"); !equal(leaf, []string{"C3"}) {
		t.Fatalf("leaf subtree=%v", leaf)
	}
	if missing := CollectSubtree(g, "nope"); !equal(missing, []string{"nope"}) {
		t.Fatalf("unknown root should yield itself, got %v", missing)
	}
}

func TestCollectSubtreeTerminatesOnCycle(t *testing.T) {
	g := Graph{"a": {"b"}, "b": {"c", "a"}, "c": {"a", "b"}}
	got := CollectSubtree(g, "a")
	if want := []string{"a", "b", "c"}; !equal(sorted(got), want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestGraphCacheHitAvoidsRebuild(t *testing.T) {
	src := &fakeLister{cats: tree()}
	gc := NewGraphCache(NewMemoryCache(), src, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := gc.Graph(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one rebuild, got %d", src.calls)
	}
}

func TestGraphCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	now := time.Now()
	mc.now = func() time.Time { return now }
	src := &fakeLister{cats: tree()}
	gc := NewGraphCache(mc, src, DefaultTTL)

	_, _ = gc.Graph(context.Background())
	now = now.Add(DefaultTTL + time.Second)
	_, _ = gc.Graph(context.Background())
	if src.calls != 2 {
		t.Fatalf("expected rebuild after ttl, got %d", src.calls)
	}
}

func TestConcurrentSubtreeDuringRebuild(t *testing.T) {
	src := &fakeLister{cats: tree()}
	gc := NewGraphCache(NewMemoryCache(), src, time.Minute)

	var wg sync.WaitGroup
	results := make([][]string, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = gc.Subtree(context.Background(), "P")
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		if want := []string{"C1", "C2", "C3", "P"}; !equal(sorted(r), want) {
			t.Fatalf("call %d: got %v", i, r)
		}
	}
}

func TestGraphSourceErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	gc := NewGraphCache(NewMemoryCache(), &fakeLister{err: boom}, 0)
	if _, err := gc.Graph(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
}
