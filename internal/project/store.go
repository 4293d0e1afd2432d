package project

import "sync"

// Store guards a single project and provides the single-writer discipline
// the model itself does not impose: structural edits go through Update,
// reads through View or Snapshot. Subscribers observe every successful
// update as a detached Document snapshot.
type Store struct {
	mu        sync.RWMutex
	project   *Project
	listeners []func(Document)
	dirty     bool
}

func NewStore(p *Project) *Store {
	if p == nil {
		p = New()
	}
	return &Store{project: p}
}

// Update applies fn under the write lock. A nil error marks the store
// dirty and notifies subscribers (outside the lock) with a snapshot taken
// while the lock was still held.
func (s *Store) Update(fn func(*Project) error) error {
	s.mu.Lock()
	if err := fn(s.project); err != nil {
		s.mu.Unlock()
		return err
	}
	s.dirty = true
	doc := ToDocument(s.project)
	listeners := append([](func(Document))(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(doc)
	}
	return nil
}

// View runs fn under the read lock. fn must not retain the project.
func (s *Store) View(fn func(*Project)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.project)
}

func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ToDocument(s.project)
}

func (s *Store) Subscribe(fn func(Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SnapshotIfDirty returns a snapshot and clears the dirty flag, or ok=false
// when nothing changed since the last call. Used by autosave.
func (s *Store) SnapshotIfDirty() (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return Document{}, false
	}
	s.dirty = false
	return ToDocument(s.project), true
}
