// Package cache is the read-through cache in front of the user service.
// Entries never expire; every mutation empties every region.
package cache

import (
	"sync"

	"github.com/acronis/go-appkit/lrucache"
	"github.com/prometheus/client_golang/prometheus"
)

// Region names.
const (
	RegionUsers    = "users"
	RegionUserByID = "userById"
)

// NewMetrics returns lrucache collectors partitioned by a "region" label.
// Register the result once and pass it to NewUsers.
func NewMetrics(namespace string) *lrucache.PrometheusMetrics {
	return lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
		Namespace:         namespace,
		CurriedLabelNames: []string{"region"},
	})
}

// Collectors lists the collectors behind m for registration.
func Collectors(m *lrucache.PrometheusMetrics) []prometheus.Collector {
	return []prometheus.Collector{m.EntriesAmount, m.HitsTotal, m.MissesTotal, m.EvictionsTotal}
}

// Region is a named, bounded, non-expiring map. Purge bumps a generation so
// a fill computed before the purge can be refused with StoreIf.
type Region[V any] struct {
	name string
	lru  *lrucache.LRUCache[string, V]

	mu  sync.Mutex
	gen uint64
}

// NewRegion creates a region holding at most maxEntries. m may be nil.
func NewRegion[V any](name string, maxEntries int, m *lrucache.PrometheusMetrics) (*Region[V], error) {
	var mc lrucache.MetricsCollector
	if m != nil {
		mc = m.MustCurryWith(prometheus.Labels{"region": name})
	}
	lru, err := lrucache.NewWithOpts[string, V](maxEntries, mc, lrucache.Options{DefaultTTL: 0})
	if err != nil {
		return nil, err
	}
	return &Region[V]{name: name, lru: lru}, nil
}

func (r *Region[V]) Name() string { return r.name }

func (r *Region[V]) Get(key string) (V, bool) { return r.lru.Get(key) }

// Generation is read before computing a value destined for StoreIf.
func (r *Region[V]) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// StoreIf stores v unless the region was purged after gen was read.
func (r *Region[V]) StoreIf(gen uint64, key string, v V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return false
	}
	r.lru.Add(key, v)
	return true
}

// Purge drops every entry.
func (r *Region[V]) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.lru.Purge()
}

func (r *Region[V]) Len() int { return r.lru.Len() }
