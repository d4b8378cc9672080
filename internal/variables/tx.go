package variables

import "maps"

// Tx is the variable overlay of one traversal step. Reads see the snapshot
// taken at Begin plus the step's own writes. It is not safe for concurrent
// use; a step runs under the user's lock.
type Tx struct {
	userID  string
	base    map[string]string
	changes map[string]string
}

func newTx(userID string, base map[string]string) *Tx {
	return &Tx{userID: userID, base: base, changes: make(map[string]string)}
}

// UserID returns the owner of the transaction.
func (tx *Tx) UserID() string { return tx.userID }

// Get returns the current value of a variable.
func (tx *Tx) Get(name string) (string, bool) {
	if v, ok := tx.changes[name]; ok {
		return v, true
	}
	v, ok := tx.base[name]
	return v, ok
}

// Set records a write. A nil value is a no-op; non-string values are stringified.
func (tx *Tx) Set(name string, value any) {
	if str, ok := Stringify(value); ok {
		tx.changes[name] = str
	}
}

// All returns the merged view, suitable as a template environment.
func (tx *Tx) All() map[string]string {
	out := maps.Clone(tx.base)
	if out == nil {
		out = make(map[string]string, len(tx.changes))
	}
	maps.Copy(out, tx.changes)
	return out
}

// Changes returns the writes made in this step.
func (tx *Tx) Changes() map[string]string {
	return maps.Clone(tx.changes)
}

// Dirty reports whether the step wrote anything.
func (tx *Tx) Dirty() bool { return len(tx.changes) > 0 }
