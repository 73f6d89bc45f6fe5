package oplog

import (
	"time"

	"github.com/deliverly/checkout-core/internal/cart"
	pkgerrors "github.com/deliverly/checkout-core/pkg/errors"
	"github.com/google/uuid"
)

// Type names the optimistic mutation an operation tracks.
type Type string

const (
	TypeAdd    Type = "add"
	TypeUpdate Type = "update"
	TypeRemove Type = "remove"
	TypeClear  Type = "clear"
)

// Status is the operation lifecycle state. An operation transitions exactly
// once from pending to committed or rolled back, then is retired.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolledback"
)

// RollbackOutcome describes how a rollback was resolved.
type RollbackOutcome string

const (
	// RollbackApplied means the inverse of the operation was re-applied on
	// top of current state.
	RollbackApplied RollbackOutcome = "applied"
	// RollbackDeferred means a later operation on the same item is still
	// pending; the inverse was folded into that operation's snapshot so the
	// later settle decides the final state.
	RollbackDeferred RollbackOutcome = "deferred"
	// RollbackSuperseded means a later operation on the same item already
	// committed; the rollback was downgraded to a no-op because a rollback
	// can never un-commit a strictly later successful write.
	RollbackSuperseded RollbackOutcome = "superseded"
)

// Operation tracks one in-flight optimistic mutation with enough state to
// roll it back safely.
type Operation struct {
	ID           uint64
	Type         Type
	TargetItemID uuid.UUID // Nil for cart-wide operations
	Snapshot     cart.Snapshot
	Status       Status
	OpenedAt     time.Time

	// cartWide marks operations whose rollback restores the full snapshot:
	// clear, and adds that replaced the whole cart.
	cartWide bool
}

// Log tracks pending optimistic operations. It carries no lock: the mutation
// coordinator is its single writer.
type Log struct {
	store  *cart.Store
	nextID uint64
	active map[uint64]*Operation

	lastCommittedByItem   map[uuid.UUID]uint64
	lastCommittedAny      uint64
	lastCommittedCartWide uint64
}

// NewLog builds an operation log over the given store.
func NewLog(store *cart.Store) (*Log, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "operation log requires a cart store")
	}
	return &Log{
		store:               store,
		active:              map[uint64]*Operation{},
		lastCommittedByItem: map[uuid.UUID]uint64{},
	}, nil
}

// Begin snapshots the store and opens a pending operation. Multiple pending
// operations are allowed simultaneously, including against the same item.
func (l *Log) Begin(opType Type, targetItemID uuid.UUID) uint64 {
	return l.begin(opType, targetItemID, opType == TypeClear)
}

// BeginReplace opens an add operation that atomically replaced the whole
// cart; its rollback restores the full pre-replace snapshot.
func (l *Log) BeginReplace(targetItemID uuid.UUID) uint64 {
	return l.begin(TypeAdd, targetItemID, true)
}

func (l *Log) begin(opType Type, targetItemID uuid.UUID, cartWide bool) uint64 {
	l.nextID++
	op := &Operation{
		ID:           l.nextID,
		Type:         opType,
		TargetItemID: targetItemID,
		Snapshot:     l.store.Snapshot(),
		Status:       StatusPending,
		OpenedAt:     time.Now(),
		cartWide:     cartWide,
	}
	l.active[op.ID] = op
	return op.ID
}

// Commit marks the operation committed and retires it. The optimistic
// mutation already stands as the truth; the store is not touched.
func (l *Log) Commit(operationID uint64) (Operation, error) {
	op, ok := l.active[operationID]
	if !ok {
		return Operation{}, pkgerrors.New(pkgerrors.CodeInternal, "unknown operation").
			WithDetails(map[string]any{"operation_id": operationID})
	}
	op.Status = StatusCommitted
	delete(l.active, operationID)

	if op.ID > l.lastCommittedAny {
		l.lastCommittedAny = op.ID
	}
	if op.TargetItemID != uuid.Nil && op.ID > l.lastCommittedByItem[op.TargetItemID] {
		l.lastCommittedByItem[op.TargetItemID] = op.ID
	}
	if op.cartWide && op.ID > l.lastCommittedCartWide {
		l.lastCommittedCartWide = op.ID
	}
	return *op, nil
}

// Rollback undoes the operation's optimistic mutation without erasing
// unrelated changes that landed since it opened. Conflict resolution is
// deterministic: the last committed write for a given item wins.
func (l *Log) Rollback(operationID uint64) (Operation, RollbackOutcome, error) {
	op, ok := l.active[operationID]
	if !ok {
		return Operation{}, "", pkgerrors.New(pkgerrors.CodeInternal, "unknown operation").
			WithDetails(map[string]any{"operation_id": operationID})
	}
	op.Status = StatusRolledBack
	delete(l.active, operationID)

	if l.committedAfter(op) {
		return *op, RollbackSuperseded, nil
	}

	if op.cartWide {
		if l.pendingAfterAny(op.ID) {
			// A later intent is still settling; restoring the full snapshot
			// now would erase its optimistic state.
			return *op, RollbackDeferred, nil
		}
		l.store.Restore(op.Snapshot)
		return *op, RollbackApplied, nil
	}

	prior, existed := op.Snapshot.Find(op.TargetItemID)

	if laterOps := l.pendingAfterForItem(op.ID, op.TargetItemID); len(laterOps) > 0 {
		// Fold this operation's inverse into the later pending snapshots:
		// if those operations commit they win outright, and if they roll
		// back they now revert past this failed write too.
		for _, later := range laterOps {
			patchSnapshot(&later.Snapshot, op.TargetItemID, prior, existed)
		}
		return *op, RollbackDeferred, nil
	}

	if existed {
		l.store.RestoreLine(prior)
	} else {
		l.store.RemoveItem(op.TargetItemID)
	}
	return *op, RollbackApplied, nil
}

// Abort drops an operation whose optimistic apply never landed on the store.
// Nothing is restored because nothing changed.
func (l *Log) Abort(operationID uint64) {
	delete(l.active, operationID)
}

// HasPending reports whether any operation is still awaiting confirmation.
// Irreversible actions such as order submission are gated on this.
func (l *Log) HasPending() bool {
	return len(l.active) > 0
}

// PendingFor counts pending operations targeting the given item, used to
// mark lines as updating in the UI.
func (l *Log) PendingFor(itemID uuid.UUID) int {
	count := 0
	for _, op := range l.active {
		if op.TargetItemID == itemID {
			count++
		}
	}
	return count
}

func (l *Log) committedAfter(op *Operation) bool {
	if op.cartWide {
		return l.lastCommittedAny > op.ID
	}
	// A committed cart-wide operation rewrote the whole cart, so it conflicts
	// with every earlier item operation, not just same-item writes.
	last := l.lastCommittedByItem[op.TargetItemID]
	if l.lastCommittedCartWide > last {
		last = l.lastCommittedCartWide
	}
	return last > op.ID
}

func (l *Log) pendingAfterAny(operationID uint64) bool {
	for _, op := range l.active {
		if op.ID > operationID {
			return true
		}
	}
	return false
}

func (l *Log) pendingAfterForItem(operationID uint64, itemID uuid.UUID) []*Operation {
	var later []*Operation
	for _, op := range l.active {
		if op.ID > operationID && (op.TargetItemID == itemID || op.cartWide) {
			later = append(later, op)
		}
	}
	return later
}

func patchSnapshot(snapshot *cart.Snapshot, itemID uuid.UUID, prior cart.Item, existed bool) {
	for idx := range snapshot.Items {
		if snapshot.Items[idx].ID != itemID {
			continue
		}
		if existed {
			snapshot.Items[idx] = prior
		} else {
			snapshot.Items = append(snapshot.Items[:idx], snapshot.Items[idx+1:]...)
		}
		return
	}
	if existed {
		snapshot.Items = append(snapshot.Items, prior)
	}
}
