package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GraphKey is the single cache entry holding the whole adjacency map.
const GraphKey = "category_graph:v1"

const DefaultTTL = 300 * time.Second

// Graph maps a category id to its children in stable order.
type Graph map[string][]string

type CategoryLister interface {
	List(ctx context.Context) ([]domain.Category, error)
}

// GraphCache rebuilds the graph from the category table on miss. Concurrent
// misses each rebuild and the last Set wins; readers are never serialized.
type GraphCache struct {
	cache Cache
	src   CategoryLister
	ttl   time.Duration
}

func NewGraphCache(cache Cache, src CategoryLister, ttl time.Duration) *GraphCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &GraphCache{cache: cache, src: src, ttl: ttl}
}

func (g *GraphCache) Graph(ctx context.Context) (Graph, error) {
	ctx, span := otel.Tracer("catalog").Start(ctx, "GraphCache.Graph")
	defer span.End()

	if b, err := g.cache.Get(ctx, GraphKey); err == nil {
		var out Graph
		if jerr := json.Unmarshal(b, &out); jerr == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return out, nil
		}
		log.Error(nil, "catalog.graph.decode.fail", nil, map[string]any{"key": GraphKey})
	} else if !errors.Is(err, ErrMiss) {
		// backend trouble degrades to a rebuild, never to an error
		log.Error(nil, "catalog.graph.cache.fail", err, nil)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	cats, err := g.src.List(ctx)
	if err != nil {
		return nil, err
	}
	graph := Build(cats)

	if b, err := json.Marshal(graph); err == nil {
		if err := g.cache.Set(ctx, GraphKey, b, g.ttl); err != nil {
			log.Error(nil, "catalog.graph.cache.fail", err, nil)
		}
	}
	return graph, nil
}

// Subtree is Graph followed by CollectSubtree.
func (g *GraphCache) Subtree(ctx context.Context, rootID string) ([]string, error) {
	graph, err := g.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return CollectSubtree(graph, rootID), nil
}

// Build turns parent links into an adjacency map. Every category gets an
// entry, leaves map to an empty list.
func Build(cats []domain.Category) Graph {
	g := make(Graph, len(cats))
	for _, c := range cats {
		if _, ok := g[c.ID]; !ok {
			g[c.ID] = []string{}
		}
		if c.ParentID != "" {
			g[c.ParentID] = append(g[c.ParentID], c.ID)
		}
	}
	return g
}

// CollectSubtree returns rootID and every id reachable from it. It walks
// depth-first with an explicit stack and a visited set, so a cyclic or
// diamond-shaped graph still terminates without duplicates. rootID is first.
func CollectSubtree(g Graph, rootID string) []string {
	visited := map[string]struct{}{}
	out := []string{}
	stack := []string{rootID}
	for len(stack) > 0 {
		n := len(stack) - 1
		id := stack[n]
		stack = stack[:n]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		out = append(out, id)
		children := g[id]
		for i := len(children) - 1; i >= 0; i-- {
			if _, seen := visited[children[i]]; !seen {
				stack = append(stack, children[i])
			}
		}
	}
	return out
}
