// Package worker runs generation turns off the request goroutine.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"redisquery-backend/internal/session"
)

var (
	ErrQueueFull = errors.New("Server is busy. Please try again in a moment.")
	ErrStopped   = errors.New("Server is shutting down.")
)

// Job is one started turn waiting for its generation call.
type Job struct {
	Session *session.Session
	Turn    session.Turn
}

type Pool struct {
	generator   session.Generator
	queue       chan Job
	workerCount int
	jobTimeout  time.Duration

	mu       sync.RWMutex
	stopped  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewPool(generator session.Generator, workerCount, queueSize int, jobTimeout time.Duration) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		generator:   generator,
		queue:       make(chan Job, queueSize),
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

// Stop waits for running turns and rolls back the ones still queued.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()

	for {
		select {
		case job := <-p.queue:
			job.Session.Finish(job.Turn, nil, ErrStopped)
		default:
			return
		}
	}
}

// Submit queues a started turn. It never blocks: a full queue returns
// ErrQueueFull and the caller must finish the turn itself.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		case job := <-p.queue:
			p.process(id, job)
		}
	}
}

func (p *Pool) process(id int, job Job) {
	ctx := context.Background()
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome := job.Session.Run(ctx, job.Turn, p.generator)

	if outcome == session.OutcomeStale {
		log.Printf("Worker %d: discarded stale turn for session %s (generation %d)", id, job.Turn.SessionID, job.Turn.Generation)
		return
	}
	log.Printf("Worker %d: turn for session %s %s in %s", id, job.Turn.SessionID, outcome, time.Since(start).Round(time.Millisecond))
}
