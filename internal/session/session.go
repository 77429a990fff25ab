// Package session holds the explicit per-run state: the loaded datasets with
// their display names, the reusable analytic engine handle, and the cache of
// derived statistics.
//
// The cache is keyed by dataset content fingerprint plus the derivation name,
// with explicit invalidation on dataset replacement, removal, and the CRS
// correction operation. There is no implicit global lookup; every component
// receives the session (or the dataset) explicitly.
package session

import (
	"context"
	"fmt"
	"log"

	"geoqa/internal/crs"
	"geoqa/internal/dataset"
	"geoqa/internal/engine"
	"geoqa/internal/loader"
	"geoqa/internal/qastats"
)

// Entry is one loaded dataset and its load outcome.
type Entry struct {
	Name    string
	Dataset *dataset.Dataset
	Warning loader.Warning
}

// Session is created at startup and cleared on explicit reset. Not safe for
// concurrent use; the interaction model runs one request at a time.
type Session struct {
	order   []string
	entries map[string]*Entry

	statsCache map[string]qastats.Stats

	eng *engine.Engine
}

func New() *Session {
	return &Session{
		entries:    map[string]*Entry{},
		statsCache: map[string]qastats.Stats{},
	}
}

// Put registers a loaded dataset under a display name, replacing (and
// invalidating the derivations of) any previous dataset with that name.
func (s *Session) Put(name string, res *loader.Result) {
	if old, ok := s.entries[name]; ok {
		s.invalidate(old.Dataset)
	} else {
		s.order = append(s.order, name)
	}
	s.entries[name] = &Entry{Name: name, Dataset: res.Dataset, Warning: res.Warning}
}

// Get returns the entry for a display name.
func (s *Session) Get(name string) (*Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Names lists the loaded datasets in insertion order.
func (s *Session) Names() []string {
	return append([]string(nil), s.order...)
}

// Remove discards a dataset and every cached derivation of it.
func (s *Session) Remove(name string) {
	e, ok := s.entries[name]
	if !ok {
		return
	}
	s.invalidate(e.Dataset)
	delete(s.entries, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Reset clears all datasets, caches, and the engine handle.
func (s *Session) Reset() {
	s.order = nil
	s.entries = map[string]*Entry{}
	s.statsCache = map[string]qastats.Stats{}
	if s.eng != nil {
		_ = s.eng.Close()
		s.eng = nil
	}
}

// Stats returns the QA statistics for a loaded dataset, computing them on
// first use and serving the cached snapshot afterwards.
func (s *Session) Stats(name string) (qastats.Stats, error) {
	e, ok := s.entries[name]
	if !ok {
		return qastats.Stats{}, fmt.Errorf("session: no dataset named %q", name)
	}

	key := statsKey(e.Dataset)
	if st, ok := s.statsCache[key]; ok {
		return st, nil
	}
	st := qastats.Compute(e.Dataset)
	s.statsCache[key] = st
	return st, nil
}

// CorrectCRS applies the CRS correction to a loaded dataset and swaps in the
// resulting dataset, invalidating the old dataset's cached statistics.
func (s *Session) CorrectCRS(name, target string, mode crs.Mode) error {
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("session: no dataset named %q", name)
	}

	corrected, err := crs.Correct(e.Dataset, target, mode)
	if err != nil {
		return err
	}

	s.invalidate(e.Dataset)
	e.Dataset = corrected
	log.Printf("session: %s: CRS corrected to %s", name, corrected.CRS)
	return nil
}

// Engine returns the process-lifetime analytic engine, creating it on first
// use.
func (s *Session) Engine() (*engine.Engine, error) {
	if s.eng == nil {
		eng, err := engine.New()
		if err != nil {
			return nil, err
		}
		s.eng = eng
	}
	return s.eng, nil
}

// RegisterForQuery exposes a loaded dataset to the engine under the fixed
// logical table name.
func (s *Session) RegisterForQuery(ctx context.Context, name string) error {
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("session: no dataset named %q", name)
	}
	eng, err := s.Engine()
	if err != nil {
		return err
	}
	return eng.Register(ctx, e.Dataset)
}

func (s *Session) invalidate(d *dataset.Dataset) {
	delete(s.statsCache, statsKey(d))
}

func statsKey(d *dataset.Dataset) string {
	return "qastats/" + d.Fingerprint()
}
