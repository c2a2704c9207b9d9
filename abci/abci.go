// Package abci implements the application-blockchain interface the shell
// exposes to the consensus engine (spec.md §6, SPEC_FULL.md §4.L): a total
// handler for every request kind, plus the event stream and query surface.
// Grounded in the teacher's engine.EngineAPI (a thin Backend-delegating
// request/response surface the consensus-layer process talks to over a
// fixed method set), generalized from the Engine API's payload/forkchoice
// methods to ABCI's InitChain/Info/Query/CheckTx/PrepareProposal/
// ProcessProposal/FinalizeBlock/Commit set.
package abci

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/holiman/uint256"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/applier"
	"github.com/anoma-network/ledger/epoch"
	"github.com/anoma-network/ledger/fees"
	"github.com/anoma-network/ledger/log"
	"github.com/anoma-network/ledger/metrics"
	"github.com/anoma-network/ledger/pos"
	"github.com/anoma-network/ledger/proposal"
	"github.com/anoma-network/ledger/shielded"
	"github.com/anoma-network/ledger/storage"
	"github.com/anoma-network/ledger/txqueue"
	"github.com/anoma-network/ledger/txtypes"
)

// QueryCode is the three-way classification of spec.md §6: "0 Ok, 1
// NotFound, other values are internal errors. Internal errors MUST NOT
// distinguish missing data from malformed data."
type QueryCode uint32

const (
	QueryOk QueryCode = iota
	QueryNotFound
	QueryInternal
)

// QueryResult is the response to a Query request.
type QueryResult struct {
	Code  QueryCode
	Value []byte
	Pairs []storage.KV // for prefix queries
}

// Genesis is the bootstrap state InitChain seeds: initial token balances,
// the initial validator set, and PosParams overrides. Supplements the
// distilled spec's silence on bootstrapping (SPEC_FULL.md §4.M); decoded
// from TOML by the config package and handed to InitChain already parsed.
type Genesis struct {
	ChainID    string
	Time       int64 // unix seconds, the clock's genesis time
	PosParams  pos.Params
	Validators []GenesisValidator
	Balances   []GenesisBalance
}

type GenesisValidator struct {
	Address      addr.Address
	ConsensusKey []byte
	TotalDeltas  int64
}

type GenesisBalance struct {
	Token   addr.Address
	Owner   addr.Address
	Amount  uint64
}

var ErrAlreadyInitialized = errors.New("abci: InitChain called against a non-empty store")

// Application is the total ABCI handler surface. All mutation during
// FinalizeBlock/Commit happens through Store per spec.md §5 "only the
// shell's main task writes"; Query and CheckTx only ever read.
type Application struct {
	mu sync.Mutex

	Store    *storage.Store
	Clock    *epoch.Clock
	Proposal *proposal.Validator
	Applier  *applier.Applier
	Shielded shielded.Primitive
	Params   pos.Params

	Log     *log.Logger
	Metrics *metrics.Registry

	active  *pos.ActiveSet
	events  *eventRing
	results map[uint64]*bitset.BitSet // height -> per-tx-index accept/reject bitmap, in-memory only
}

// New wires an Application from its already-constructed collaborators.
func New(store *storage.Store, clock *epoch.Clock, prim shielded.Primitive, params pos.Params) *Application {
	return &Application{
		Store:    store,
		Clock:    clock,
		Proposal: proposal.New(prim),
		Shielded: prim,
		Params:   params,
		Log:      log.Module("abci"),
		Metrics:  metrics.NewRegistry(),
		events:   newEventRing(1024),
		results:  make(map[uint64]*bitset.BitSet),
	}
}

// InitChain seeds storage at height 0 from the genesis document: initial
// balances, the initial validator set and its PosParams.
func (a *Application) InitChain(g Genesis) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Store.Height() != 0 {
		return ErrAlreadyInitialized
	}

	ws := storage.NewWriteSet(a.Store.Snapshot())
	pos.PutParams(ws, g.PosParams)

	powers := make(map[addr.Address]int64, len(g.Validators))
	for _, v := range g.Validators {
		pos.PutState(ws, v.Address, 0, pos.StateCandidate)
		ws.Put(pos.ConsensusKeyKey(v.Address, 0), v.ConsensusKey)
		pos.PutTotalDeltas(ws, v.Address, 0, v.TotalDeltas)
		power := g.PosParams.VotingPower(v.TotalDeltas)
		pos.PutVotingPower(ws, v.Address, 0, power)
		powers[v.Address] = power
	}
	vs := pos.ComputeValidatorSet(powers, g.PosParams.MaxActiveValidators)
	pos.PutValidatorSet(ws, 0, vs)

	var totalPower int64
	for _, v := range vs.Active {
		totalPower += powers[v]
	}
	pos.PutTotalVotingPower(ws, 0, totalPower)

	for _, b := range g.Balances {
		fees.Credit(ws, b.Token, b.Owner, uint256.NewInt(b.Amount))
	}

	if _, err := a.Store.Commit(ws); err != nil {
		return fmt.Errorf("abci: InitChain commit: %w", err)
	}

	a.active = pos.NewActiveSet(vs)
	a.Log.Info("chain initialized", "chain_id", g.ChainID, "validators", len(g.Validators))
	return nil
}

// Info returns the last committed height and an app hash derived from it.
// Computing a full Merkle state root over the key-value store is out of
// scope (an external collaborator per spec.md §1); the height-derived hash
// is enough for the consensus engine's own chain-continuity bookkeeping.
func (a *Application) Info() (height uint64, appHash []byte) {
	h := a.Store.Height()
	return h, appHashForHeight(h).Bytes()
}

func appHashForHeight(h uint64) txtypes.Hash {
	return txtypes.Keccak256Hash(encodeHeight(h))
}

func encodeHeight(h uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(h)
		h >>= 8
	}
	return b
}

// Query dispatches the six query paths: epoch, results, value/, prefix/,
// has_key/ and dry_run_tx.
func (a *Application) Query(path string, data []byte) QueryResult {
	switch {
	case path == "epoch":
		return QueryResult{Code: QueryOk, Value: encodeHeight(uint64(a.Clock.Current()))}
	case path == "results":
		return a.queryResults()
	case strings.HasPrefix(path, "value/"):
		key := []byte(strings.TrimPrefix(path, "value/"))
		return a.queryValue(key)
	case strings.HasPrefix(path, "prefix/"):
		prefix := []byte(strings.TrimPrefix(path, "prefix/"))
		return a.queryPrefix(prefix)
	case strings.HasPrefix(path, "has_key/"):
		key := []byte(strings.TrimPrefix(path, "has_key/"))
		return a.queryHasKey(key)
	case path == "dry_run_tx":
		return a.queryDryRunTx(data)
	default:
		return QueryResult{Code: QueryInternal}
	}
}

func (a *Application) queryValue(key []byte) QueryResult {
	v, ok, err := a.Store.Get(key)
	if err != nil {
		return QueryResult{Code: QueryInternal}
	}
	if !ok {
		return QueryResult{Code: QueryNotFound}
	}
	return QueryResult{Code: QueryOk, Value: v}
}

func (a *Application) queryHasKey(key []byte) QueryResult {
	ok, err := a.Store.Has(key)
	if err != nil {
		return QueryResult{Code: QueryInternal}
	}
	if ok {
		return QueryResult{Code: QueryOk, Value: []byte{1}}
	}
	return QueryResult{Code: QueryOk, Value: []byte{0}}
}

func (a *Application) queryPrefix(prefix []byte) QueryResult {
	it := a.Store.IteratePrefix(prefix)
	defer it.Release()

	var pairs []storage.KV
	for it.Next() {
		pairs = append(pairs, storage.KV{Key: append([]byte(nil), it.Key()...), Value: append([]byte(nil), it.Value()...)})
	}
	return QueryResult{Code: QueryOk, Pairs: pairs}
}

func (a *Application) queryResults() QueryResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	bs, ok := a.results[a.Store.Height()]
	if !ok {
		return QueryResult{Code: QueryNotFound}
	}
	buf, err := bs.MarshalBinary()
	if err != nil {
		return QueryResult{Code: QueryInternal}
	}
	return QueryResult{Code: QueryOk, Value: buf}
}

// queryDryRunTx replays a decrypted tx's inner code and native-VP gate
// against a transient write set rooted at the current committed state, then
// discards it: "execution trace, no commit" (spec.md §6).
func (a *Application) queryDryRunTx(txBytes []byte) QueryResult {
	tx, err := txtypes.DecodeTx(txBytes)
	if err != nil {
		return QueryResult{Code: QueryInternal}
	}
	if tx.Variant != txtypes.VariantDecrypted || tx.Decrypted.Kind != txtypes.KindDecrypted {
		return QueryResult{Code: QueryInternal}
	}
	if a.Applier == nil {
		return QueryResult{Code: QueryInternal, Value: []byte("no executor wired")}
	}
	d := tx.Decrypted

	pre := a.Store.Snapshot()
	ws := storage.NewWriteSet(pre)
	if _, err := txqueue.Pop(ws, d.HashCommitment()); err != nil {
		return QueryResult{Code: QueryOk, Value: []byte(fmt.Sprintf("rejected: %v", err))}
	}

	verifiers, gasUsed, err := a.Applier.Exec.Execute(ws, d.Inner)
	if err != nil {
		return QueryResult{Code: QueryOk, Value: []byte(fmt.Sprintf("WasmRuntimeError: %v", err))}
	}

	changes := pos.CollectChanges(ws.TouchedKeys(), pre, ws.PostView())
	if len(changes) > 0 {
		req := pos.Request{Changes: changes, Verifiers: verifiers, CurrentEpoch: a.Clock.Current(), Params: a.Params}
		if errs := pos.Validate(req); len(errs) > 0 {
			ws.Discard()
			return QueryResult{Code: QueryOk, Value: []byte(fmt.Sprintf("WasmRuntimeError: %v", errs[0]))}
		}
	}
	ws.Discard()
	return QueryResult{Code: QueryOk, Value: []byte(fmt.Sprintf("Ok: gas_used=%d verifiers=%d", gasUsed, len(verifiers)))}
}

// CheckTx runs the same per-variant contract as ProcessProposal against the
// current committed state, for mempool admission rather than block validity.
func (a *Application) CheckTx(tx *txtypes.Tx, signerVerified bool) proposal.Result {
	sn := a.Store.Snapshot()
	return a.classify(sn, tx, signerVerified)
}

// PrepareProposal reorders candidate txs so that any decrypted txs for this
// block precede new wrappers, matching the queue invariant spec.md §4.F
// depends on, then returns the reordered slice for per-tx classification.
func (a *Application) PrepareProposal(txs []*txtypes.Tx) []*txtypes.Tx {
	var decrypted, rest []*txtypes.Tx
	for _, tx := range txs {
		if tx.Variant == txtypes.VariantDecrypted {
			decrypted = append(decrypted, tx)
		} else {
			rest = append(rest, tx)
		}
	}
	return append(decrypted, rest...)
}

// ProcessProposal classifies every tx in a proposed block (spec.md §4.E).
func (a *Application) ProcessProposal(txs []*txtypes.Tx) []proposal.Result {
	sn := a.Store.Snapshot()
	results := make([]proposal.Result, len(txs))
	for i, tx := range txs {
		results[i] = a.classify(sn, tx, true)
	}
	return results
}

func (a *Application) classify(sn *storage.Snapshot, tx *txtypes.Tx, signerVerified bool) proposal.Result {
	switch tx.Variant {
	case txtypes.VariantRaw:
		return a.Proposal.ValidateRaw()
	case txtypes.VariantWrapper:
		return a.Proposal.ValidateWrapper(sn, tx.Wrapper, signerVerified)
	case txtypes.VariantDecrypted:
		return a.Proposal.ValidateDecrypted(sn, tx.Decrypted)
	case txtypes.VariantProtocol:
		vs, ok, err := pos.GetValidatorSet(sn, a.Clock.Current())
		if err != nil || !ok {
			return proposal.Result{Code: proposal.InvalidSig, Info: "no validator set recorded for the current epoch"}
		}
		signer := addr.NewImplicit(tx.Protocol.SignerPK)
		return a.Proposal.ValidateProtocol(pos.NewActiveSet(vs), signer, tx.Protocol, nil)
	default:
		return proposal.Result{Code: proposal.InvalidTx, Info: "unrecognized tx variant"}
	}
}

// Event is the tagged event emitted per applied or accepted tx (spec.md §6).
type Event struct {
	Type                string // "accepted" | "applied"
	Hash                txtypes.Hash
	Height              uint64
	Code                uint8
	Info                string
	GasUsed             uint64
	InitializedAccounts []addr.Address
}

// FinalizeBlock applies each tx in order (spec.md §4.F) and emits the event
// stream, building the per-block accept/reject bitmap the "results" query
// path serves.
func (a *Application) FinalizeBlock(txs []*txtypes.Tx, proposalID []byte) ([]Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	height := a.Store.Height() + 1
	bits := bitset.New(uint(len(txs)))
	events := make([]Event, 0, len(txs))

	for i, tx := range txs {
		ev, accepted, err := a.applyOne(tx, proposalID)
		if err != nil {
			return events, err
		}
		if accepted {
			bits.Set(uint(i))
		}
		events = append(events, ev)
		a.events.push(ev)
	}

	a.results[height] = bits
	return events, nil
}

func (a *Application) applyOne(tx *txtypes.Tx, proposalID []byte) (Event, bool, error) {
	switch tx.Variant {
	case txtypes.VariantWrapper:
		out, err := a.Applier.ApplyWrapper(tx.Wrapper)
		if err != nil {
			return Event{Type: "accepted", Hash: tx.Wrapper.TxHash, Code: uint8(applier.WasmRuntimeError), Info: err.Error()}, false, nil
		}
		return Event{Type: "accepted", Hash: out.Hash, Code: uint8(out.Code), Info: out.Info, GasUsed: out.GasUsed}, out.Code == applier.Ok, nil
	case txtypes.VariantDecrypted:
		d := tx.Decrypted
		if d.Kind == txtypes.KindUndecryptable {
			out, err := a.Applier.ApplyDecryptedUndecryptable(d.Wrapper)
			if err != nil {
				return Event{}, false, err
			}
			return Event{Type: "applied", Hash: out.Hash, Code: uint8(out.Code)}, true, nil
		}
		committed := d.HashCommitment()
		out, err := a.Applier.ApplyDecrypted(committed, d.Inner, proposalID)
		if err != nil {
			return Event{}, false, err
		}
		return Event{Type: "applied", Hash: out.Hash, Code: uint8(out.Code), Info: out.Info, GasUsed: out.GasUsed}, out.Code == applier.Ok, nil
	default:
		return Event{}, false, nil
	}
}

// Commit advances the epoch clock (running the epoch-boundary hook when an
// epoch is crossed), drops the in-memory results bitmap recorded GCWindow
// heights earlier, and reports the committed height and app hash. Stored
// PoS records (bonds, unbonds, slashes, epoch-indexed deltas) are not
// garbage-collected here or anywhere else.
func (a *Application) Commit(blockTime int64) (height uint64, appHash []byte, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h := a.Store.Height()
	if advErr := a.Clock.Advance(h, time.Unix(blockTime, 0)); advErr != nil {
		return h, nil, fmt.Errorf("abci: Commit epoch advance: %w", advErr)
	}
	if gc := a.Params.GCWindow(); h > gc {
		delete(a.results, h-gc)
	}
	hash := appHashForHeight(h)
	return h, hash.Bytes(), nil
}

// --- snapshot stubs (spec.md §4.L: total, but state sync is unsupported) ---

var ErrSnapshotsUnsupported = errors.New("abci: state sync via snapshots is not supported")

func (a *Application) ListSnapshots() ([]byte, error)                  { return nil, ErrSnapshotsUnsupported }
func (a *Application) OfferSnapshot([]byte) error                      { return ErrSnapshotsUnsupported }
func (a *Application) LoadSnapshotChunk(height, format, chunk uint64) ([]byte, error) {
	return nil, ErrSnapshotsUnsupported
}
func (a *Application) ApplySnapshotChunk([]byte) error { return ErrSnapshotsUnsupported }
