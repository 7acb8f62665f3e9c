package store

import (
	"context"
	"errors"
	"log"
	"time"

	"sanitization-status-backend/internal/engine"
)

// ErrQueueFull is returned when the persister cannot accept more work.
var ErrQueueFull = errors.New("persistence queue full")

type persistJob struct {
	commit   *engine.Commit
	readIDs  []string
	settings *engine.Settings
}

// Persister writes engine commits to the store from a single background
// worker so that writes for a station land in commit order. It implements
// engine.Listener and engine.SettingsListener.
type Persister struct {
	store        Store
	jobs         chan persistJob
	writeTimeout time.Duration
	done         chan struct{}
}

// NewPersister creates a persister with a bounded queue.
func NewPersister(s Store, queueSize int) *Persister {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Persister{
		store:        s,
		jobs:         make(chan persistJob, queueSize),
		writeTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}
}

// TransitionCommitted queues a commit for persistence without blocking.
func (p *Persister) TransitionCommitted(c engine.Commit) error {
	return p.enqueue(persistJob{commit: &c})
}

// AlertsRead queues a read-state update without blocking.
func (p *Persister) AlertsRead(ids []string) error {
	return p.enqueue(persistJob{readIDs: ids})
}

// SettingsUpdated queues the new settings for persistence without blocking.
func (p *Persister) SettingsUpdated(s engine.Settings) error {
	return p.enqueue(persistJob{settings: &s})
}

func (p *Persister) enqueue(job persistJob) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker. When ctx is cancelled it flushes whatever is
// still queued and closes Done.
func (p *Persister) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		log.Println("Persister started")
		for {
			select {
			case job := <-p.jobs:
				p.process(ctx, job)
			case <-ctx.Done():
				p.drain()
				log.Println("Persister shutting down")
				return
			}
		}
	}()
}

// Done is closed once the worker has flushed and exited.
func (p *Persister) Done() <-chan struct{} {
	return p.done
}

func (p *Persister) drain() {
	for {
		select {
		case job := <-p.jobs:
			p.process(context.Background(), job)
		default:
			return
		}
	}
}

func (p *Persister) process(ctx context.Context, job persistJob) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	switch {
	case job.commit != nil:
		t := job.commit.Transition
		if err := p.store.SaveCommit(ctx, *job.commit); err != nil {
			log.Printf("Error persisting station %s %s->%s: %v", t.Station.ID, t.From, t.To, err)
		}
	case len(job.readIDs) > 0:
		if err := p.store.MarkAlertsRead(ctx, job.readIDs); err != nil {
			log.Printf("Error persisting read state for %d alerts: %v", len(job.readIDs), err)
		}
	case job.settings != nil:
		if err := p.store.SaveSettings(ctx, *job.settings); err != nil {
			log.Printf("Error persisting settings: %v", err)
		}
	}
}
