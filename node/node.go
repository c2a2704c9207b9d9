// Package node wires the shell's subsystems (storage, epoch clock, ABCI
// application, logging, metrics) into one process lifecycle. Grounded in
// the teacher's node.Node/node.LifecycleManager (pkg/node/node.go,
// pkg/node/lifecycle.go): a config-driven constructor that initializes
// every subsystem up front, plus a priority-ordered start/stop sequence.
package node

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/anoma-network/ledger/abci"
	"github.com/anoma-network/ledger/applier"
	"github.com/anoma-network/ledger/config"
	"github.com/anoma-network/ledger/epoch"
	"github.com/anoma-network/ledger/log"
	"github.com/anoma-network/ledger/metrics"
	"github.com/anoma-network/ledger/pos"
	"github.com/anoma-network/ledger/shielded"
	"github.com/anoma-network/ledger/storage"
)

// Node owns the storage handle and every long-lived subsystem built on top
// of it. Start/Stop drive the lifecycle; after InitChain, Store is mutated
// only through App's FinalizeBlock (one commit per applied tx) and Commit
// (the epoch-boundary fold), both called by the consensus engine.
type Node struct {
	cfg *config.Config

	lock *flock.Flock

	Store *storage.Store
	Clock *epoch.Clock
	App   *abci.Application

	events   *abci.EventServer
	exporter *metrics.Exporter
	sysColl  *metrics.SystemCollector

	lifecycle *lifecycleManager
	log       *log.Logger

	mu      sync.Mutex
	running bool
}

// New initializes every subsystem but starts no network services: the
// storage backend (on-disk goleveldb behind a read cache), the epoch clock
// (its boundary hook runs pos.FoldPipeline against Store), and the ABCI
// application. exec is the sandboxed code runtime FinalizeBlock and the
// dry_run_tx query delegate to for decrypted-tx execution -- an external collaborator per
// spec.md §1, supplied by the caller (cmd/ledgerd) rather than constructed
// here.
func New(cfg *config.Config, genesis *config.Genesis, prim shielded.Primitive, exec applier.Executor) (*Node, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Ledger.DataDir, "LOCK"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("node: acquire datadir lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("node: datadir %s is already in use by another process", cfg.Ledger.DataDir)
	}

	raw, err := storage.OpenLevelDBBackend(filepath.Join(cfg.Ledger.DataDir, "db"))
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("node: open storage: %w", err)
	}
	store := storage.NewStore(storage.NewCachedBackend(raw, 32<<20))

	n := &Node{
		cfg:       cfg,
		lock:      lock,
		Store:     store,
		lifecycle: newLifecycleManager(),
		log:       log.Module("node"),
	}

	clock, err := epoch.New(epoch.Params{
		MinDuration: time.Duration(cfg.Ledger.MinEpochDuration) * time.Second,
		MinBlocks:   uint64(cfg.Ledger.MinEpochBlocks),
	}, store.Height(), time.Now(), func(prev, next epoch.Number, _ uint64) error {
		return pos.FoldPipeline(n.Store, prev, next)
	})
	if err != nil {
		store.Close()
		lock.Unlock()
		return nil, fmt.Errorf("node: init epoch clock: %w", err)
	}
	n.Clock = clock

	posParams, err := cfg.PosParams()
	if err != nil {
		store.Close()
		lock.Unlock()
		return nil, fmt.Errorf("node: %w", err)
	}

	app := abci.New(store, clock, prim, posParams)
	app.Applier = applier.New(store, exec, posParams, clock)
	n.App = app

	if store.Height() == 0 {
		if genesis == nil {
			store.Close()
			lock.Unlock()
			return nil, fmt.Errorf("node: empty datadir requires a genesis document")
		}
		abciGenesis, err := genesis.ToABCI(cfg)
		if err != nil {
			store.Close()
			lock.Unlock()
			return nil, fmt.Errorf("node: %w", err)
		}
		if err := app.InitChain(abciGenesis); err != nil {
			store.Close()
			lock.Unlock()
			return nil, fmt.Errorf("node: %w", err)
		}
	}

	n.events = abci.NewEventServer(app)
	n.exporter = metrics.NewExporter(app.Metrics)
	n.sysColl = metrics.NewSystemCollector(app.Metrics, 15*time.Second)

	if cfg.RPC.Enabled {
		if err := n.lifecycle.register(&eventService{events: n.events, addr: cfg.RPC.RPCAddr()}, 10); err != nil {
			store.Close()
			lock.Unlock()
			return nil, err
		}
	}
	if err := n.lifecycle.register(&sysMetricsService{n: n}, 20); err != nil {
		store.Close()
		lock.Unlock()
		return nil, err
	}

	return n, nil
}

// Start starts every registered service (event-stream HTTP server, system
// metrics collector) in priority order.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("node: already running")
	}
	n.log.Info("starting ledger node", "chain_id", n.cfg.Ledger.ChainID, "datadir", n.cfg.Ledger.DataDir)
	if errs := n.lifecycle.startAll(); len(errs) > 0 {
		return fmt.Errorf("node: start: %v", errs)
	}
	n.running = true
	n.log.Info("ledger node started")
	return nil
}

// Stop drains the lifecycle in reverse priority order, releases the
// datadir lock, and closes storage. Per spec.md §5 "Cancellation &
// timeout", it does not interrupt an in-flight Commit: the caller is
// expected to have already stopped delivering new blocks to App before
// calling Stop.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var errs []error
	if n.running {
		n.log.Info("stopping ledger node")
		errs = n.lifecycle.stopAll()
	}

	if err := n.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := n.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}

	n.running = false
	n.log.Info("ledger node stopped")
	if len(errs) > 0 {
		return fmt.Errorf("node: stop: %v", errs)
	}
	return nil
}

// Running reports whether Start has completed without a matching Stop.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// MetricsHandler returns the Prometheus text-exposition handler for
// mounting on whatever HTTP surface the caller runs (cmd/ledgerd decides
// the bind address; Node does not presume one for metrics).
func (n *Node) MetricsHandler() http.Handler { return n.exporter.Handler() }

// eventService adapts abci.EventServer to the Service interface.
type eventService struct {
	events *abci.EventServer
	addr   string

	done chan struct{}
}

func (s *eventService) Name() string { return "event-stream" }

func (s *eventService) Start() error {
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.events.ListenAndServe(s.addr)
	}()
	return nil
}

func (s *eventService) Stop() error {
	err := s.events.Close()
	if s.done != nil {
		<-s.done
	}
	return err
}

// sysMetricsService adapts metrics.SystemCollector to the Service interface.
type sysMetricsService struct {
	n      *Node
	cancel context.CancelFunc
}

func (s *sysMetricsService) Name() string { return "system-metrics" }

func (s *sysMetricsService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.n.sysColl.Run(ctx)
	return nil
}

func (s *sysMetricsService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
