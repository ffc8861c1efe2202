package calendar

import (
	"sort"
	"sync"
	"time"

	"github.com/sells-group/freight-cli/internal/model"
)

// Cache holds holiday sets by year. A year is written at most once; later
// writes for the same year are ignored, so concurrent duplicate fetches are
// harmless.
type Cache struct {
	mu    sync.RWMutex
	years map[int]map[string]struct{}
}

// NewCache returns an empty holiday cache.
func NewCache() *Cache {
	return &Cache{years: make(map[int]map[string]struct{})}
}

// Contains reports whether date is a cached holiday. The second result is
// false when the year has not been populated yet.
func (c *Cache) Contains(date time.Time) (holiday bool, populated bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.years[date.Year()]
	if !ok {
		return false, false
	}
	_, holiday = set[model.FormatDate(date)]
	return holiday, true
}

// Populated reports whether year has been cached.
func (c *Cache) Populated(year int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.years[year]
	return ok
}

// Put stores the holiday set for year unless one is already present. Dates
// outside year are ignored. It returns true if this call populated the year.
func (c *Cache) Put(year int, dates []time.Time) bool {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if d.Year() != year {
			continue
		}
		set[model.FormatDate(d)] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.years[year]; ok {
		return false
	}
	c.years[year] = set
	return true
}

// Dates returns the sorted holidays cached for year.
func (c *Cache) Dates(year int) []time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := c.years[year]
	out := make([]time.Time, 0, len(set))
	for key := range set {
		if t, err := model.ParseDate(key); err == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
