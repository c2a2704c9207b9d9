package storage

import "testing"

func TestStoreCommitAdvancesHeight(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	if s.Height() != 0 {
		t.Fatalf("expected initial height 0, got %d", s.Height())
	}

	ws := NewWriteSet(s.Snapshot())
	ws.Put([]byte("a"), []byte("1"))

	h, err := s.Commit(ws)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if h != 1 {
		t.Fatalf("expected height 1 after commit, got %d", h)
	}

	v, ok, err := s.Get([]byte("a"))
	if err != nil || !ok {
		t.Fatalf("expected committed key to be readable, got ok=%v err=%v", ok, err)
	}
	if string(v) != "1" {
		t.Fatalf("expected value %q, got %q", "1", v)
	}
}

func TestSnapshotKeepsCaptureHeightAndReadsCurrentState(t *testing.T) {
	s := NewStore(NewMemoryBackend())

	ws1 := NewWriteSet(s.Snapshot())
	ws1.Put([]byte("k"), []byte("v1"))
	if _, err := s.Commit(ws1); err != nil {
		t.Fatalf("commit1: %v", err)
	}

	snap := s.Snapshot()
	if snap.Height() != 1 {
		t.Fatalf("expected snapshot height 1, got %d", snap.Height())
	}

	ws2 := NewWriteSet(s.Snapshot())
	ws2.Put([]byte("k"), []byte("v2"))
	if _, err := s.Commit(ws2); err != nil {
		t.Fatalf("commit2: %v", err)
	}

	v, ok := snap.Get([]byte("k"))
	if !ok || string(v) != "v2" {
		t.Fatalf("snapshot reads through to the store's current committed value; got %q ok=%v", v, ok)
	}
	if snap.Height() != 1 {
		t.Fatalf("snapshot's own height stamp must not change after later commits, got %d", snap.Height())
	}
}

func TestWriteSetOverlaysBaseSnapshot(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	ws0 := NewWriteSet(s.Snapshot())
	ws0.Put([]byte("base"), []byte("committed"))
	if _, err := s.Commit(ws0); err != nil {
		t.Fatalf("commit base: %v", err)
	}

	base := s.Snapshot()
	ws := NewWriteSet(base)

	if v, ok := ws.Get([]byte("base")); !ok || string(v) != "committed" {
		t.Fatalf("expected write set to read through to base snapshot, got %q ok=%v", v, ok)
	}

	ws.Put([]byte("pending"), []byte("uncommitted"))
	if v, ok := ws.Get([]byte("pending")); !ok || string(v) != "uncommitted" {
		t.Fatalf("expected write set to see its own pending write, got %q ok=%v", v, ok)
	}
	if _, ok := base.Get([]byte("pending")); ok {
		t.Fatal("base snapshot must not observe uncommitted writes")
	}

	ws.Delete([]byte("base"))
	if _, ok := ws.Get([]byte("base")); ok {
		t.Fatal("expected deleted key to be hidden by the write set overlay")
	}
	if _, ok := base.Get([]byte("base")); !ok {
		t.Fatal("base snapshot must not observe the pending delete")
	}
}

func TestWriteSetTouchedKeysPreservesInsertionOrder(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	ws := NewWriteSet(s.Snapshot())
	ws.Put([]byte("z"), []byte("1"))
	ws.Put([]byte("a"), []byte("2"))
	ws.Delete([]byte("z"))
	ws.Put([]byte("m"), []byte("3"))

	keys := ws.TouchedKeys()
	want := []string{"z", "a", "m"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d touched keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if string(keys[i]) != k {
			t.Fatalf("touched key %d: expected %q, got %q", i, k, keys[i])
		}
	}
}

func TestWriteSetDiscardDropsPendingWrites(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	ws := NewWriteSet(s.Snapshot())
	ws.Put([]byte("k"), []byte("v"))
	ws.Discard()

	if _, ok := ws.Get([]byte("k")); ok {
		t.Fatal("expected discarded write set to no longer see its pending write")
	}
	if len(ws.TouchedKeys()) != 0 {
		t.Fatal("expected discarded write set to report no touched keys")
	}
}

func TestPostViewReflectsPendingWrites(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	ws := NewWriteSet(s.Snapshot())
	ws.Put([]byte("k"), []byte("v"))

	view := ws.PostView()
	v, ok := view.Get([]byte("k"))
	if !ok || string(v) != "v" {
		t.Fatalf("expected post view to see pending write, got %q ok=%v", v, ok)
	}
}

func TestIteratorOrdersKeysAscendingWithinPrefix(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	ws := NewWriteSet(s.Snapshot())
	ws.Put([]byte("pfx/b"), []byte("2"))
	ws.Put([]byte("pfx/a"), []byte("1"))
	ws.Put([]byte("other/c"), []byte("3"))
	if _, err := s.Commit(ws); err != nil {
		t.Fatalf("commit: %v", err)
	}

	it := s.IteratePrefix([]byte("pfx/"))
	defer it.Release()

	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	if len(got) != 2 || got[0] != "pfx/a" || got[1] != "pfx/b" {
		t.Fatalf("expected ascending [pfx/a pfx/b], got %v", got)
	}
}
