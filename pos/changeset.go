package pos

import "github.com/anoma-network/ledger/epoch"

// Change is a single storage key's pre/post values, as read by the applier
// before invoking the native VP (spec.md §4.H "collect, per key, a typed
// change record describing the pre- and post- values").
type Change struct {
	Key  []byte
	Pre  []byte // nil if the key did not exist pre-tx
	Post []byte // nil if the key was deleted
}

// CollectChanges builds one Change per touched key that falls in the PoS
// keyspace, reading pre from the tx's pre-view and post from its post-view.
// Keys outside the PoS keyspace are not the VP's concern (spec.md §4.H rule
// 8 "any key outside the PoS keyspace is allowed and not validated here").
func CollectChanges(touchedKeys [][]byte, pre Reader, post Reader) []Change {
	var changes []Change
	for _, key := range touchedKeys {
		if !IsPoSKey(key) {
			continue
		}
		preVal, _ := pre.Get(key)
		postVal, _ := post.Get(key)
		changes = append(changes, Change{Key: key, Pre: preVal, Post: postVal})
	}
	return changes
}

// CurrentEpoch is passed alongside a ChangeSet to the declarative validator;
// kept as its own type alias for readability at call sites.
type CurrentEpoch = epoch.Number
