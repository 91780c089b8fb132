package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/reperio/internal/models"
)

// Operation keys. Each key is exclusive with itself only, so crawls of two
// different ATS families can overlap while a second crawl of the same family
// is refused.
const (
	opDiscovery    = "discovery"
	opEmbeddings   = "embeddings"
	opFullPipeline = "full_pipeline"
)

func crawlKey(family string) string {
	if family == "" {
		return "crawl_all"
	}
	return "crawl_" + family
}

func enrichKey(family string) string {
	if family == "" {
		return "enrich_all"
	}
	return "enrich_" + family
}

// registry tracks live exclusive operations. start is check-and-claim under
// one lock, so two goroutines can never both win the same key.
type registry struct {
	mu      sync.Mutex
	running map[string]*models.OperationStatus
}

func newRegistry() *registry {
	return &registry{running: make(map[string]*models.OperationStatus)}
}

// start claims key, returning false when the operation is already live.
func (r *registry) start(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, live := r.running[key]; live {
		return false
	}
	r.running[key] = &models.OperationStatus{Key: key, StartedAt: time.Now().UTC()}
	return true
}

// end releases key. Releasing a key that is not held is a no-op.
func (r *registry) end(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, key)
}

// step records what a live operation is currently doing.
func (r *registry) step(key, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, live := r.running[key]; live {
		op.CurrentStep = step
	}
}

// snapshot lists live operations, oldest first.
func (r *registry) snapshot() []models.OperationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]models.OperationStatus, 0, len(r.running))
	for _, op := range r.running {
		ops = append(ops, *op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].StartedAt.Before(ops[j].StartedAt)
	})
	return ops
}
