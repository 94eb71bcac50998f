package controller

import (
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ocr/log"
)

// Set owns the controllers of every page and the worker pool they share.
type Set struct {
	pool  *ants.Pool
	pages map[string]*Controller
	order []string
}

// NewSet creates one controller per page on a pool of the given size.
//
// Arguments:
//   - deps: The collaborators shared by every page.
//   - workers: The maximum number of concurrent page runs.
//   - pages: The page configurations. Names must be unique.
//
// Returns:
//   - *Set: The controllers.
//   - error: If the pool cannot be created or a name repeats.
//
// @example
//
//	set, err := controller.NewSet(deps, 4, controller.Digits(), controller.Translate())
//	defer set.Close()
func NewSet(deps Dependencies, workers int, pages ...Page) (*Set, error) {
	if workers <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p any) {
		logger.Errorw("page worker panic", "panic", p)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "create page worker pool")
	}

	s := &Set{pool: pool, pages: make(map[string]*Controller, len(pages))}
	for _, p := range pages {
		if _, dup := s.pages[p.Name]; dup {
			pool.Release()
			return nil, errors.Errorf("duplicate page %q", p.Name)
		}
		s.pages[p.Name] = New(p, deps, pool)
		s.order = append(s.order, p.Name)
	}
	if deps.Profiler != nil {
		deps.Profiler.AddMetricsCollector(s)
	}
	return s, nil
}

// Get returns the controller for name.
func (s *Set) Get(name string) (*Controller, bool) {
	c, ok := s.pages[name]
	return c, ok
}

// Names returns the page names in registration order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Wait blocks until every page has finished its submitted runs.
func (s *Set) Wait() {
	for _, c := range s.pages {
		c.Wait()
	}
}

// Close waits for queued runs and releases the pool.
func (s *Set) Close() {
	s.Wait()
	s.pool.Release()
}

// CollectMetrics reports worker pool occupancy.
func (s *Set) CollectMetrics() map[string]float64 {
	return map[string]float64{
		"pool_running": float64(s.pool.Running()),
		"pool_free":    float64(s.pool.Free()),
	}
}
