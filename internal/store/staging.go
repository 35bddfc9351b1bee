package store

import (
	"fmt"
)

type opKind uint8

const (
	opAdd opKind = iota + 1
	opDelete
)

// stagedOp is one uncommitted mutation.
type stagedOp struct {
	kind   opKind
	fields Fields // opAdd
	id     string // opDelete
}

func (o stagedOp) docID() string {
	if o.kind == opAdd {
		return o.fields.ID
	}
	return o.id
}

// opLog is the in-memory staging area shared by both backends. Ops are
// replayed in order at commit; for any id the last op wins.
type opLog struct {
	ops []stagedOp
}

func (l *opLog) add(f Fields) error {
	if f.ID == "" {
		return fmt.Errorf("document id is empty")
	}
	l.ops = append(l.ops, stagedOp{kind: opAdd, fields: f})
	return nil
}

func (l *opLog) delete(id string) {
	l.ops = append(l.ops, stagedOp{kind: opDelete, id: id})
}

func (l *opLog) savepoint() int {
	return len(l.ops)
}

func (l *opLog) rollbackTo(sp int) {
	if sp < 0 {
		sp = 0
	}
	if sp >= len(l.ops) {
		return
	}
	clear(l.ops[sp:])
	l.ops = l.ops[:sp]
}

func (l *opLog) len() int {
	return len(l.ops)
}

// snapshot returns the staged ops without copying. The caller must not
// retain it past reset.
func (l *opLog) snapshot() []stagedOp {
	return l.ops
}

func (l *opLog) reset() {
	l.ops = nil
}

// resolve collapses the log to the final op per id, keeping first-seen order.
func resolve(ops []stagedOp) []stagedOp {
	last := make(map[string]int, len(ops))
	order := make([]string, 0, len(ops))
	for i, op := range ops {
		id := op.docID()
		if _, seen := last[id]; !seen {
			order = append(order, id)
		}
		last[id] = i
	}
	out := make([]stagedOp, 0, len(order))
	for _, id := range order {
		out = append(out, ops[last[id]])
	}
	return out
}
