// Package node implements the façade of spec.md §4.6: request submission
// (post/add) plus read paths, backed by the single-writer scheduler and
// bounded worker pool of §5.
package node

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/chainkit/statenode/config"
	"github.com/chainkit/statenode/kvstore"
	"github.com/chainkit/statenode/log"
	"github.com/chainkit/statenode/metrics"
	"github.com/chainkit/statenode/nodehash"
	"github.com/chainkit/statenode/pipeline"
	"github.com/chainkit/statenode/requests"
	"github.com/chainkit/statenode/responses"
	"github.com/chainkit/statenode/store"
	"github.com/chainkit/statenode/values"
)

// ErrHalted is returned by post/add while the node is halted after a
// fatal store error (spec.md §7).
var ErrHalted = xerrors.New("node: halted after a fatal store error, call Resume")

// ErrAddTimeout is returned by Add when AddTimeout elapses before a
// response arrives; the request may still commit later (spec.md §5).
var ErrAddTimeout = xerrors.New("node: add timed out waiting for a response")

type job struct {
	ref  values.TransactionReference
	req  requests.Request
	done chan outcome
}

type outcome struct {
	resp     responses.Response
	rejected bool
	err      error
}

// Node owns one KVS and the single committed Store handle readers see;
// post/add hand work to one scheduler goroutine, bounded by an errgroup
// worker pool of size cfg.Workers (spec.md §5).
type Node struct {
	kv        kvstore.Store
	hasher    nodehash.Hasher
	pipeline  *pipeline.TransactionPipeline
	consensus config.ConsensusSnapshot
	cfg       config.LocalNodeConfig

	mu     sync.RWMutex
	latest *store.Store

	workers *errgroup.Group
	sched   chan job
	done    chan struct{}

	halted  atomic.Bool
	haltErr atomic.Value
}

// New opens the façade against an already-initialized KVS and starts its
// scheduler goroutine. Callers provide the CodeExecutor/Verifier-backed
// pipeline and the consensus parameters in effect.
func New(kv kvstore.Store, hasher nodehash.Hasher, pl *pipeline.TransactionPipeline, consensus config.ConsensusSnapshot, cfg config.LocalNodeConfig) *Node {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	workers := &errgroup.Group{}
	workers.SetLimit(cfg.Workers)

	n := &Node{
		kv:        kv,
		hasher:    hasher,
		pipeline:  pl,
		consensus: consensus,
		cfg:       cfg,
		latest:    store.Open(kv, hasher),
		workers:   workers,
		sched:     make(chan job, cfg.Workers),
		done:      make(chan struct{}),
	}
	go n.run()
	return n
}

// Halted reports whether a fatal store error has suspended delivery.
func (n *Node) Halted() bool { return n.halted.Load() }

// HaltErr returns the error that caused Halt, or nil if not halted.
func (n *Node) HaltErr() error {
	if err, ok := n.haltErr.Load().(error); ok {
		return err
	}
	return nil
}

func (n *Node) halt(err error) {
	if n.halted.CompareAndSwap(false, true) {
		n.haltErr.Store(err)
		log.Errorf("node halted after a fatal store error: %v", err)
	}
}

// Resume clears a halt and re-opens the committed Store at id, letting an
// operator recover after inspecting the fatal error (spec.md §7).
func (n *Node) Resume(id store.StateId) {
	n.mu.Lock()
	n.latest = store.CheckoutAt(n.kv, n.hasher, id)
	n.mu.Unlock()
	n.haltErr.Store((error)(nil))
	n.halted.Store(false)
}

// enqueue hands req to the scheduler channel from a worker bounded by
// cfg.Workers, so at most that many goroutines contend for sched at once
// (spec.md §5: "workers never touch the transformation directly; they
// hand requests to the single scheduler goroutine over a channel").
func (n *Node) enqueue(ctx context.Context, req requests.Request) (job, error) {
	if n.Halted() {
		return job{}, ErrHalted
	}

	ref := requests.Reference(req, n.hasher)
	j := job{ref: ref, req: req, done: make(chan outcome, 1)}
	errCh := make(chan error, 1)

	n.workers.Go(func() error {
		metrics.SchedulerQueueDepth.Inc()
		select {
		case n.sched <- j:
			errCh <- nil
		case <-n.done:
			metrics.SchedulerQueueDepth.Dec()
			errCh <- ErrHalted
		}
		return nil
	})

	select {
	case err := <-errCh:
		return j, err
	case <-ctx.Done():
		return j, ctx.Err()
	}
}

// Post enqueues req and returns its TransactionReference immediately; the
// caller may later poll GetResponse(ref) on a subsequent StateId.
func (n *Node) Post(ctx context.Context, req requests.Request) (values.TransactionReference, error) {
	j, err := n.enqueue(ctx, req)
	return j.ref, err
}

// Add posts req and waits for its response, bounded by cfg.AddTimeout. A
// timeout does not cancel delivery: the request may still commit and
// become visible via GetResponse (spec.md §5).
func (n *Node) Add(ctx context.Context, req requests.Request) (values.TransactionReference, responses.Response, bool, error) {
	j, err := n.enqueue(ctx, req)
	if err != nil {
		return j.ref, nil, false, err
	}

	timeout := n.cfg.AddTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-j.done:
		return j.ref, o.resp, o.rejected, o.err
	case <-timer.C:
		return j.ref, nil, false, ErrAddTimeout
	case <-ctx.Done():
		return j.ref, nil, false, ctx.Err()
	}
}

// run is the single-writer scheduler thread of spec.md §5: it drains
// whatever jobs are already queued into one batch, delivers them against
// one StoreTransformation in arrival order, and commits them together.
func (n *Node) run() {
	for {
		var first job
		select {
		case first = <-n.sched:
		case <-n.done:
			return
		}
		metrics.SchedulerQueueDepth.Dec()

		batch := []job{first}
	drain:
		for {
			select {
			case j := <-n.sched:
				metrics.SchedulerQueueDepth.Dec()
				batch = append(batch, j)
			default:
				break drain
			}
		}

		n.deliverBatch(batch)
	}
}

func (n *Node) deliverBatch(batch []job) {
	n.mu.RLock()
	base := n.latest
	n.mu.RUnlock()

	start := time.Now()
	txn := base.Begin(n.consensus, time.Now())

	results := make([]outcome, len(batch))
	var manifestRequests []*requests.InitializeManifestRequest
	var fatal error

	for i, j := range batch {
		resp, rejected, err := txn.Execute(j.req, n.pipeline.Deliver)
		if rejected {
			results[i] = outcome{rejected: true, err: err}
			continue
		}
		if err != nil {
			fatal = err
			results[i] = outcome{err: err}
			for k := i + 1; k < len(batch); k++ {
				results[k] = outcome{err: err}
			}
			break
		}
		if m, ok := j.req.(*requests.InitializeManifestRequest); ok {
			manifestRequests = append(manifestRequests, m)
		}
		results[i] = outcome{resp: resp, rejected: rejected}
	}

	if fatal == nil {
		for _, m := range manifestRequests {
			if err := txn.SetManifest(m.Manifest); err != nil {
				fatal = err
				break
			}
		}
	}

	if fatal != nil {
		txn.Abandon()
		n.halt(fatal)
		for i, j := range batch {
			j.done <- results[i]
		}
		return
	}

	id, err := txn.Commit()
	if err != nil {
		n.halt(err)
		for i, j := range batch {
			j.done <- results[i]
		}
		return
	}

	metrics.CommitsTotal.Inc()
	metrics.CommitDuration.Observe(time.Since(start).Seconds())

	n.mu.Lock()
	n.latest = store.CheckoutAt(n.kv, n.hasher, id)
	n.mu.Unlock()

	logger := log.WithStateID(id.Commits)
	logger.Info().Int("batch", len(batch)).Msg("committed")

	for i, j := range batch {
		j.done <- results[i]
	}
}

// Close stops the scheduler goroutine and waits for outstanding enqueue
// workers to return. Jobs already queued but not yet delivered are
// abandoned, never committed.
func (n *Node) Close() {
	close(n.done)
	_ = n.workers.Wait()
}
