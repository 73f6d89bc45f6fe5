package oplog

import (
	"testing"

	"github.com/deliverly/checkout-core/internal/cart"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func seedStore(t *testing.T) (*cart.Store, cart.Item) {
	t.Helper()
	store := cart.NewStore()
	added, err := store.AddItem(cart.Item{
		MenuItemID:   "m-1",
		Name:         "Dumplings",
		UnitPrice:    decimal.NewFromInt(100),
		Quantity:     1,
		RestaurantID: "r-1",
	}, false)
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store, added
}

func TestOperationIDsAreMonotonic(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, err := NewLog(store)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}

	first := log.Begin(TypeUpdate, item.ID)
	second := log.Begin(TypeUpdate, item.ID)
	if second <= first {
		t.Fatalf("expected monotonic ids, got %d then %d", first, second)
	}
	if !log.HasPending() {
		t.Fatal("expected pending operations")
	}
	if log.PendingFor(item.ID) != 2 {
		t.Fatalf("expected two pending ops for the item, got %d", log.PendingFor(item.ID))
	}
}

func TestCommitRetiresOperationWithoutTouchingStore(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opID := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 4); err != nil {
		t.Fatalf("update: %v", err)
	}

	op, err := log.Commit(opID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if op.Status != StatusCommitted {
		t.Fatalf("expected committed status, got %s", op.Status)
	}
	if log.HasPending() {
		t.Fatal("commit should retire the operation")
	}
	if got, _ := store.Get(item.ID); got.Quantity != 4 {
		t.Fatalf("commit must keep the optimistic quantity, got %d", got.Quantity)
	}
}

func TestRollbackRestoresSingleLineQuantity(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opID := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 5); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, outcome, err := log.Rollback(opID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if outcome != RollbackApplied {
		t.Fatalf("expected applied rollback, got %s", outcome)
	}
	if got, _ := store.Get(item.ID); got.Quantity != 1 {
		t.Fatalf("expected quantity restored to 1, got %d", got.Quantity)
	}
}

func TestRollbackReinsertsRemovedItem(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opID := log.Begin(TypeRemove, item.ID)
	store.RemoveItem(item.ID)

	if _, outcome, err := log.Rollback(opID); err != nil || outcome != RollbackApplied {
		t.Fatalf("rollback: outcome=%s err=%v", outcome, err)
	}
	got, ok := store.Get(item.ID)
	if !ok {
		t.Fatal("expected removed item back in the cart")
	}
	if got.Quantity != 1 {
		t.Fatalf("expected pre-removal quantity 1, got %d", got.Quantity)
	}
}

func TestRollbackOfAddRemovesTheLine(t *testing.T) {
	t.Parallel()

	store, _ := seedStore(t)
	log, _ := NewLog(store)

	newLine := cart.Item{
		ID:           uuid.New(),
		MenuItemID:   "m-2",
		Name:         "Spring Rolls",
		UnitPrice:    decimal.NewFromInt(40),
		Quantity:     2,
		RestaurantID: "r-1",
	}
	opID := log.Begin(TypeAdd, newLine.ID)
	if _, err := store.AddItem(newLine, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, outcome, err := log.Rollback(opID); err != nil || outcome != RollbackApplied {
		t.Fatalf("rollback: outcome=%s err=%v", outcome, err)
	}
	if _, ok := store.Get(newLine.ID); ok {
		t.Fatal("expected the optimistic add to be reverted")
	}
}

// Operations A (1→2) then B (2→3) on one item: A issued first but resolving
// after B committed must not undo B's quantity of 3.
func TestRollbackCannotUndoLaterCommittedWrite(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opA := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 2); err != nil {
		t.Fatalf("update A: %v", err)
	}

	opB := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 3); err != nil {
		t.Fatalf("update B: %v", err)
	}

	if _, err := log.Commit(opB); err != nil {
		t.Fatalf("commit B: %v", err)
	}

	_, outcome, err := log.Rollback(opA)
	if err != nil {
		t.Fatalf("rollback A: %v", err)
	}
	if outcome != RollbackSuperseded {
		t.Fatalf("expected superseded rollback, got %s", outcome)
	}
	if got, _ := store.Get(item.ID); got.Quantity != 3 {
		t.Fatalf("last committed write must win; got quantity %d", got.Quantity)
	}
}

// A fails while B is still pending: the rollback defers to B. If B then
// rolls back too, the item reverts past both failed writes.
func TestRollbackDefersToPendingLaterWrite(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opA := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 2); err != nil {
		t.Fatalf("update A: %v", err)
	}
	opB := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 3); err != nil {
		t.Fatalf("update B: %v", err)
	}

	_, outcome, err := log.Rollback(opA)
	if err != nil {
		t.Fatalf("rollback A: %v", err)
	}
	if outcome != RollbackDeferred {
		t.Fatalf("expected deferred rollback, got %s", outcome)
	}
	if got, _ := store.Get(item.ID); got.Quantity != 3 {
		t.Fatalf("deferred rollback must not touch the optimistic state; got %d", got.Quantity)
	}

	if _, outcome, err := log.Rollback(opB); err != nil || outcome != RollbackApplied {
		t.Fatalf("rollback B: outcome=%s err=%v", outcome, err)
	}
	if got, _ := store.Get(item.ID); got.Quantity != 1 {
		t.Fatalf("expected revert past both failed writes to 1, got %d", got.Quantity)
	}
}

func TestClearRollbackRestoresFullSnapshot(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opID := log.Begin(TypeClear, uuid.Nil)
	store.Clear()

	if _, outcome, err := log.Rollback(opID); err != nil || outcome != RollbackApplied {
		t.Fatalf("rollback clear: outcome=%s err=%v", outcome, err)
	}
	if got, ok := store.Get(item.ID); !ok || got.Quantity != 1 {
		t.Fatalf("expected full cart restore, got %+v ok=%v", got, ok)
	}
}

func TestClearRollbackSupersededByLaterCommit(t *testing.T) {
	t.Parallel()

	store, _ := seedStore(t)
	log, _ := NewLog(store)

	opClear := log.Begin(TypeClear, uuid.Nil)
	store.Clear()

	fresh := cart.Item{
		ID:           uuid.New(),
		MenuItemID:   "m-7",
		Name:         "Ramen",
		UnitPrice:    decimal.NewFromInt(90),
		Quantity:     1,
		RestaurantID: "r-2",
	}
	opAdd := log.Begin(TypeAdd, fresh.ID)
	if _, err := store.AddItem(fresh, false); err != nil {
		t.Fatalf("add after clear: %v", err)
	}
	if _, err := log.Commit(opAdd); err != nil {
		t.Fatalf("commit add: %v", err)
	}

	_, outcome, err := log.Rollback(opClear)
	if err != nil {
		t.Fatalf("rollback clear: %v", err)
	}
	if outcome != RollbackSuperseded {
		t.Fatalf("expected superseded rollback, got %s", outcome)
	}
	if _, ok := store.Get(fresh.ID); !ok {
		t.Fatal("committed post-clear add must survive the clear rollback")
	}
}

// A clear that commits after an item update opened must win: rolling back
// the update cannot re-insert the item into the emptied cart.
func TestRollbackSupersededByLaterCommittedClear(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opUpdate := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 4); err != nil {
		t.Fatalf("update: %v", err)
	}

	opClear := log.Begin(TypeClear, uuid.Nil)
	store.Clear()
	if _, err := log.Commit(opClear); err != nil {
		t.Fatalf("commit clear: %v", err)
	}

	_, outcome, err := log.Rollback(opUpdate)
	if err != nil {
		t.Fatalf("rollback update: %v", err)
	}
	if outcome != RollbackSuperseded {
		t.Fatalf("expected superseded rollback, got %s", outcome)
	}
	if !store.IsEmpty() {
		t.Fatal("rollback re-inserted an item into the committed-clear cart")
	}
}

// Same conflict via a committed replace-add: the old-restaurant line must
// not come back into the new restaurant's cart.
func TestRollbackSupersededByLaterCommittedReplace(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opUpdate := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 2); err != nil {
		t.Fatalf("update: %v", err)
	}

	fresh := cart.Item{
		ID:           uuid.New(),
		MenuItemID:   "m-9",
		Name:         "Pho",
		UnitPrice:    decimal.NewFromInt(70),
		Quantity:     1,
		RestaurantID: "r-2",
	}
	opReplace := log.BeginReplace(fresh.ID)
	if _, err := store.AddItem(fresh, true); err != nil {
		t.Fatalf("replace add: %v", err)
	}
	if _, err := log.Commit(opReplace); err != nil {
		t.Fatalf("commit replace: %v", err)
	}

	_, outcome, err := log.Rollback(opUpdate)
	if err != nil {
		t.Fatalf("rollback update: %v", err)
	}
	if outcome != RollbackSuperseded {
		t.Fatalf("expected superseded rollback, got %s", outcome)
	}
	if _, ok := store.Get(item.ID); ok {
		t.Fatal("old-restaurant line resurfaced after a committed replace")
	}
	if got, ok := store.Get(fresh.ID); !ok || got.RestaurantID != "r-2" {
		t.Fatalf("expected the replacing cart to stand, got %+v ok=%v", got, ok)
	}
}

func TestRollbackPreservesUnrelatedCommittedChanges(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	other := cart.Item{
		ID:           uuid.New(),
		MenuItemID:   "m-2",
		Name:         "Green Curry",
		UnitPrice:    decimal.NewFromInt(80),
		Quantity:     2,
		RestaurantID: "r-1",
	}

	opUpdate := log.Begin(TypeUpdate, item.ID)
	if err := store.UpdateQuantity(item.ID, 6); err != nil {
		t.Fatalf("update: %v", err)
	}

	opAdd := log.Begin(TypeAdd, other.ID)
	if _, err := store.AddItem(other, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := log.Commit(opAdd); err != nil {
		t.Fatalf("commit add: %v", err)
	}

	// Blindly restoring opUpdate's snapshot would erase the committed add.
	if _, outcome, err := log.Rollback(opUpdate); err != nil || outcome != RollbackApplied {
		t.Fatalf("rollback update: outcome=%s err=%v", outcome, err)
	}
	if got, _ := store.Get(item.ID); got.Quantity != 1 {
		t.Fatalf("expected target reverted to 1, got %d", got.Quantity)
	}
	if _, ok := store.Get(other.ID); !ok {
		t.Fatal("rollback erased an unrelated committed add")
	}
}

func TestRollbackUnknownOperation(t *testing.T) {
	t.Parallel()

	store, _ := seedStore(t)
	log, _ := NewLog(store)

	if _, _, err := log.Rollback(99); err == nil {
		t.Fatal("expected error for unknown operation")
	}
	if _, err := log.Commit(99); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestAbortDropsOperationWithoutRestore(t *testing.T) {
	t.Parallel()

	store, item := seedStore(t)
	log, _ := NewLog(store)

	opID := log.Begin(TypeUpdate, item.ID)
	log.Abort(opID)

	if log.HasPending() {
		t.Fatal("aborted operation must not stay pending")
	}
	got, _ := store.Get(item.ID)
	if got.Quantity != 1 {
		t.Fatalf("abort must not touch the store, got quantity %d", got.Quantity)
	}
	if _, _, err := log.Rollback(opID); err == nil {
		t.Fatal("aborted operation must be unknown to rollback")
	}
}
