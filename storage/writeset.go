package storage

// writeEntry is a single buffered mutation: either a Put (value set,
// deleted=false) or a Delete (deleted=true, value ignored).
type writeEntry struct {
	value   []byte
	deleted bool
}

// WriteSet is the transient write set a tx applier mutates while executing a
// decrypted tx's code (spec.md §4.F). It overlays a base Snapshot so reads
// see the tx's own pending writes layered over the last committed state,
// without ever mutating the Snapshot itself.
type WriteSet struct {
	base  *Snapshot
	dirty map[string]writeEntry
	order []string // insertion order, for deterministic key iteration
}

// NewWriteSet creates an empty write set layered over base.
func NewWriteSet(base *Snapshot) *WriteSet {
	return &WriteSet{base: base, dirty: make(map[string]writeEntry)}
}

// Get reads key, preferring the write set's own pending mutation over the
// base snapshot.
func (ws *WriteSet) Get(key []byte) ([]byte, bool) {
	if entry, ok := ws.dirty[string(key)]; ok {
		if entry.deleted {
			return nil, false
		}
		return entry.value, true
	}
	return ws.base.Get(key)
}

// Put buffers a write; it is not visible to other readers until Commit.
func (ws *WriteSet) Put(key, value []byte) {
	k := string(key)
	if _, seen := ws.dirty[k]; !seen {
		ws.order = append(ws.order, k)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	ws.dirty[k] = writeEntry{value: cp}
}

// Delete buffers a deletion.
func (ws *WriteSet) Delete(key []byte) {
	k := string(key)
	if _, seen := ws.dirty[k]; !seen {
		ws.order = append(ws.order, k)
	}
	ws.dirty[k] = writeEntry{deleted: true}
}

// Height returns the base snapshot's height (the write set has not yet been
// committed to a new height).
func (ws *WriteSet) Height() uint64 { return ws.base.Height() }

// TouchedKeys returns the keys this write set has written or deleted, in the
// order they were first touched. The applier uses this to determine which
// validity predicates must run (spec.md §4.F: "for every storage key the tx
// wrote, invoke the validity predicate of every address whose storage it
// touched").
func (ws *WriteSet) TouchedKeys() [][]byte {
	keys := make([][]byte, len(ws.order))
	for i, k := range ws.order {
		keys[i] = []byte(k)
	}
	return keys
}

// PostView returns a View over this write set, the "post" view passed to
// native validity predicates: committed state plus everything this tx wrote
// or deleted so far.
func (ws *WriteSet) PostView() View { return &postView{ws: ws} }

type postView struct{ ws *WriteSet }

func (p *postView) Get(key []byte) ([]byte, bool) { return p.ws.Get(key) }
func (p *postView) Height() uint64                { return p.ws.Height() }

// Discard drops all buffered writes without committing them, used when a
// native validity predicate rejects the write set (spec.md §4.F.2: "discard
// the write set and emit a WasmRuntimeError-coded event").
func (ws *WriteSet) Discard() {
	ws.dirty = make(map[string]writeEntry)
	ws.order = nil
}
