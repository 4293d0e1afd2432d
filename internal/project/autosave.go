package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MinAutosaveInterval is the floor applied to configured intervals so a
// misconfigured project cannot hammer the disk.
const MinAutosaveInterval = 10 * time.Second

// AutosaveConfig configures an Autosave. Zero values fall back to the
// project settings (interval), a fresh token and a real ticker.
type AutosaveConfig struct {
	Dir      string
	Token    string
	Interval time.Duration

	// Ticker lets tests drive time deterministically. It returns the tick
	// channel and a stop func.
	Ticker func(d time.Duration) (<-chan time.Time, func())

	Log zerolog.Logger
}

// Autosave periodically writes dirty store snapshots to
// <dir>/<token>.autosave.json. Start/Stop bound its lifetime; Stop joins
// the background goroutine and is safe to call more than once.
type Autosave struct {
	store    *Store
	dir      string
	token    string
	interval time.Duration
	ticker   func(d time.Duration) (<-chan time.Time, func())
	log      zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

func NewAutosave(store *Store, cfg AutosaveConfig) *Autosave {
	interval := cfg.Interval
	if interval == 0 {
		store.View(func(p *Project) {
			interval = time.Duration(p.Settings.AutosaveIntervalSec) * time.Second
		})
	}
	if interval < MinAutosaveInterval {
		interval = MinAutosaveInterval
	}
	token := cfg.Token
	if token == "" {
		token = uuid.NewString()
	}
	ticker := cfg.Ticker
	if ticker == nil {
		ticker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	return &Autosave{
		store:    store,
		dir:      cfg.Dir,
		token:    token,
		interval: interval,
		ticker:   ticker,
		log:      cfg.Log,
	}
}

// Path returns the autosave target file.
func (a *Autosave) Path() string {
	return filepath.Join(a.dir, a.token+".autosave.json")
}

func (a *Autosave) Start() {
	if a.stop != nil {
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	tick, stopTick := a.ticker(a.interval)

	go func() {
		defer close(a.done)
		defer stopTick()
		for {
			select {
			case <-a.stop:
				return
			case <-tick:
				a.flush()
			}
		}
	}()
	a.log.Debug().Dur("interval", a.interval).Str("path", a.Path()).Msg("autosave started")
}

func (a *Autosave) flush() {
	doc, ok := a.store.SnapshotIfDirty()
	if !ok {
		return
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		a.log.Warn().Err(err).Msg("autosave marshal failed")
		return
	}
	if err := os.WriteFile(a.Path(), b, 0o644); err != nil {
		a.log.Warn().Err(err).Str("path", a.Path()).Msg("autosave write failed")
		return
	}
	a.log.Debug().Str("path", a.Path()).Msg("autosave written")
}

func (a *Autosave) Stop() {
	if a.stop == nil {
		return
	}
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	<-a.done
}
