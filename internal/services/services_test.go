package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"famledger/internal/amqp"
	"famledger/internal/core"
	"famledger/internal/metrics"
	"famledger/internal/store"
	"famledger/internal/store/memory"
	"famledger/internal/store/sqlite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	rt       *Runtime
	registry *FamilyRegistry
	ledger   *ExpenseLedger
	events   *recordingPublisher
	rec      *metrics.Recorder
	expenses store.Map[core.FamilyExpense]
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()
	return newFixtureWith(t, enforce, memory.New[core.Family](), memory.New[core.FamilyExpense]())
}

func newFixtureWith(t *testing.T, enforce bool, families store.Map[core.Family], expenses store.Map[core.FamilyExpense]) *fixture {
	t.Helper()
	events := &recordingPublisher{}
	rec := metrics.NewRecorder()
	rt := NewRuntime(events, rec)

	var seq int
	rt.NewID = func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rt.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	reg := NewFamilyRegistry(rt, families, RegistryOptions{EnforceOwnership: enforce})
	led := NewExpenseLedger(rt, reg, expenses, LedgerOptions{SnapshotFamilyName: true})
	return &fixture{rt: rt, registry: reg, ledger: led, events: events, rec: rec, expenses: expenses}
}

func as(p core.Principal) context.Context {
	return core.WithPrincipal(context.Background(), p)
}

var smith = core.FamilyPayload{Name: "Smith", Members: []string{"John", "Jane"}, Address: "153 Lincoln St"}

func TestAddThenGetFamily(t *testing.T) {
	fx := newFixture(t, true)
	ctx := as("alice")

	added, err := fx.registry.AddFamily(ctx, smith)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID == "" || added.CreatedAt.IsZero() || added.UpdatedAt != nil {
		t.Fatalf("unexpected new family: %+v", added)
	}
	if added.CreatedBy != "alice" {
		t.Fatalf("createdBy=%q want alice", added.CreatedBy)
	}

	got, err := fx.registry.GetFamily(ctx, added.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, added) {
		t.Fatalf("get returned %+v, add returned %+v", got, added)
	}
}

func TestGetUnknownFamily(t *testing.T) {
	fx := newFixture(t, true)
	_, err := fx.registry.GetFamily(context.Background(), "nope")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "get family: family with id=nope: not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestAddFamilyCopiesMembers(t *testing.T) {
	fx := newFixture(t, false)
	members := []string{"A"}
	f, _ := fx.registry.AddFamily(context.Background(), core.FamilyPayload{Name: "X", Members: members})
	members[0] = "mutated"

	got, _ := fx.registry.GetFamily(context.Background(), f.ID)
	if got.Members[0] != "A" {
		t.Fatalf("stored members aliased caller slice: %v", got.Members)
	}
}

func TestUpdateFamily(t *testing.T) {
	fx := newFixture(t, true)
	owner := as("alice")
	f, _ := fx.registry.AddFamily(owner, smith)

	upd := core.FamilyPayload{Name: "Smith-Jones", Members: []string{"John"}, Address: "1 Elm"}
	got, err := fx.registry.UpdateFamily(owner, f.ID, upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != upd.Name || got.Address != upd.Address || !reflect.DeepEqual(got.Members, upd.Members) {
		t.Fatalf("fields not replaced: %+v", got)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("updatedAt not stamped: %+v", got)
	}
	if !got.CreatedAt.Equal(f.CreatedAt) || got.CreatedBy != f.CreatedBy || got.ID != f.ID {
		t.Fatalf("immutable fields changed: before %+v after %+v", f, got)
	}

	first := *got.UpdatedAt
	again, _ := fx.registry.UpdateFamily(owner, f.ID, upd)
	if !again.UpdatedAt.After(first) {
		t.Fatalf("updatedAt not refreshed on second update")
	}
}

func TestUpdateFamilyErrors(t *testing.T) {
	fx := newFixture(t, true)
	f, _ := fx.registry.AddFamily(as("alice"), smith)

	_, err := fx.registry.UpdateFamily(as("alice"), "missing", smith)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = fx.registry.UpdateFamily(as("mallory"), f.ID, core.FamilyPayload{Name: "Hijacked"})
	if !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	stored, _ := fx.registry.GetFamily(context.Background(), f.ID)
	if !reflect.DeepEqual(stored, f) {
		t.Fatalf("record changed after refused update: %+v", stored)
	}
}

func TestOwnershipNotEnforced(t *testing.T) {
	fx := newFixture(t, false)
	f, _ := fx.registry.AddFamily(as("alice"), smith)

	if _, err := fx.registry.UpdateFamily(as("bob"), f.ID, smith); err != nil {
		t.Fatalf("update by non-owner should pass: %v", err)
	}
	if _, err := fx.registry.DeleteFamily(as("bob"), f.ID); err != nil {
		t.Fatalf("delete by non-owner should pass: %v", err)
	}
}

func TestDeleteFamily(t *testing.T) {
	fx := newFixture(t, true)
	f, _ := fx.registry.AddFamily(as("alice"), smith)

	if _, err := fx.registry.DeleteFamily(as("bob"), f.ID); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := fx.registry.GetFamily(context.Background(), f.ID); err != nil {
		t.Fatalf("family gone after refused delete: %v", err)
	}

	removed, err := fx.registry.DeleteFamily(as("alice"), f.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !reflect.DeepEqual(removed, f) {
		t.Fatalf("removed %+v want %+v", removed, f)
	}
	if _, err := fx.registry.GetFamily(context.Background(), f.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := fx.registry.DeleteFamily(as("alice"), f.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestIDsNeverReused(t *testing.T) {
	fx := newFixture(t, false)
	rt := NewRuntime(nil, nil) // real uuid generator
	fx.rt.NewID = rt.NewID

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		f, err := fx.registry.AddFamily(context.Background(), smith)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if seen[f.ID] {
			t.Fatalf("id %s reused", f.ID)
		}
		seen[f.ID] = true
		if i%2 == 0 {
			_, _ = fx.registry.DeleteFamily(context.Background(), f.ID)
		}
	}
}

func TestListFamiliesIdempotent(t *testing.T) {
	fx := newFixture(t, false)
	for i := 0; i < 3; i++ {
		_, _ = fx.registry.AddFamily(context.Background(), smith)
	}
	a, err := fx.registry.ListFamilies(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	b, _ := fx.registry.ListFamilies(context.Background())
	if len(a) != 3 || !reflect.DeepEqual(a, b) {
		t.Fatalf("list not stable: %+v vs %+v", a, b)
	}
	if !sort.SliceIsSorted(a, func(i, j int) bool { return a[i].ID < a[j].ID }) {
		t.Fatalf("list not in key order")
	}
}

func TestAddExpenseUnknownFamily(t *testing.T) {
	fx := newFixture(t, false)
	_, err := fx.ledger.AddFamilyExpense(context.Background(), core.FamilyExpensePayload{FamilyID: "ghost", Amount: "1"})
	if !errors.Is(err, core.ErrValidationFailed) {
		t.Fatalf("expected validation failed, got %v", err)
	}
	all, _ := fx.expenses.Values(context.Background())
	if len(all) != 0 {
		t.Fatalf("ledger changed on failed add: %+v", all)
	}
	if got := fx.events.types(); len(got) != 0 {
		t.Fatalf("events published on failed add: %v", got)
	}
}

func TestListFamilyExpensesFilters(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	a, _ := fx.registry.AddFamily(ctx, smith)
	b, _ := fx.registry.AddFamily(ctx, core.FamilyPayload{Name: "Doe"})

	want := map[string]bool{}
	for i, fam := range []string{a.ID, b.ID, a.ID, b.ID, a.ID} {
		e, err := fx.ledger.AddFamilyExpense(ctx, core.FamilyExpensePayload{FamilyID: fam, Amount: fmt.Sprint(i)})
		if err != nil {
			t.Fatalf("add expense: %v", err)
		}
		if fam == a.ID {
			want[e.ID] = true
		}
	}

	got, err := fx.ledger.ListFamilyExpenses(ctx, a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d expenses want %d", len(got), len(want))
	}
	for _, e := range got {
		if !want[e.ID] || e.FamilyID != a.ID {
			t.Fatalf("unexpected expense %+v", e)
		}
	}

	again, _ := fx.ledger.ListFamilyExpenses(ctx, a.ID)
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("repeated list differs")
	}

	none, err := fx.ledger.ListFamilyExpenses(ctx, "ghost")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v %v", none, err)
	}
}

func TestFamilyNameSnapshotIsNotRefreshed(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	f, _ := fx.registry.AddFamily(ctx, smith)
	e, _ := fx.ledger.AddFamilyExpense(ctx, core.FamilyExpensePayload{FamilyID: f.ID, Amount: "3"})
	if e.FamilyName != "Smith" {
		t.Fatalf("familyName=%q want Smith", e.FamilyName)
	}

	_, _ = fx.registry.UpdateFamily(ctx, f.ID, core.FamilyPayload{Name: "Renamed"})
	list, _ := fx.ledger.ListFamilyExpenses(ctx, f.ID)
	if list[0].FamilyName != "Smith" {
		t.Fatalf("snapshot refreshed to %q", list[0].FamilyName)
	}
}

func TestSnapshotDisabled(t *testing.T) {
	fx := newFixture(t, false)
	fx.ledger.opts.SnapshotFamilyName = false
	f, _ := fx.registry.AddFamily(context.Background(), smith)
	e, _ := fx.ledger.AddFamilyExpense(context.Background(), core.FamilyExpensePayload{FamilyID: f.ID})
	if e.FamilyName != "" {
		t.Fatalf("expected no snapshot, got %q", e.FamilyName)
	}
}

func TestDeleteFamilyExpense(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	f, _ := fx.registry.AddFamily(ctx, smith)
	e, _ := fx.ledger.AddFamilyExpense(ctx, core.FamilyExpensePayload{FamilyID: f.ID, Amount: "9.99", Labels: []string{"food"}})

	removed, err := fx.ledger.DeleteFamilyExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !reflect.DeepEqual(removed, e) {
		t.Fatalf("removed %+v want %+v", removed, e)
	}
	if _, err := fx.ledger.DeleteFamilyExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := fx.ledger.GetFamilyExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSummarizeFamilyExpenses(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	f, _ := fx.registry.AddFamily(ctx, smith)
	for _, amt := range []string{"105.60", "4.40", "n/a"} {
		_, _ = fx.ledger.AddFamilyExpense(ctx, core.FamilyExpensePayload{FamilyID: f.ID, Amount: amt})
	}
	s, err := fx.ledger.SummarizeFamilyExpenses(ctx, f.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Count != 3 || s.Unparseable != 1 || s.Total.String() != "110" {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	fx := newFixture(t, false)
	fx.events.err = errors.New("broker down")
	if _, err := fx.registry.AddFamily(context.Background(), smith); err != nil {
		t.Fatalf("add should succeed despite publish failure: %v", err)
	}
}

func TestMetricsObserved(t *testing.T) {
	fx := newFixture(t, true)
	_, _ = fx.registry.GetFamily(context.Background(), "x")
	_, _ = fx.registry.AddFamily(context.Background(), smith)

	rr := metricsBody(t, fx.rec)
	for _, want := range []string{
		`famledger_operations_total{operation="getFamily",outcome="not_found"} 1`,
		`famledger_operations_total{operation="addFamily",outcome="ok"} 1`,
	} {
		if !contains(rr, want) {
			t.Fatalf("metrics missing %s:\n%s", want, rr)
		}
	}
}

func TestConcurrentAddsAreSerialised(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	f, _ := fx.registry.AddFamily(ctx, smith)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fx.ledger.AddFamilyExpense(ctx, core.FamilyExpensePayload{FamilyID: f.ID, Amount: "1"})
		}()
	}
	wg.Wait()

	list, _ := fx.ledger.ListFamilyExpenses(ctx, f.ID)
	if len(list) != 20 {
		t.Fatalf("got %d expenses want 20", len(list))
	}
}

// The end-to-end scenario: no cascade from family to expenses.
func runSmithScenario(t *testing.T, fx *fixture) {
	t.Helper()
	ctx := as("alice")

	f, err := fx.registry.AddFamily(ctx, smith)
	if err != nil {
		t.Fatalf("add family: %v", err)
	}
	if f.ID == "" || f.CreatedAt.IsZero() || f.UpdatedAt != nil {
		t.Fatalf("unexpected family: %+v", f)
	}

	e, err := fx.ledger.AddFamilyExpense(ctx, core.FamilyExpensePayload{FamilyID: f.ID, Amount: "105.60", AttachmentURL: "url/x"})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if e.FamilyID != f.ID || e.Amount != "105.60" || e.AttachmentURL != "url/x" {
		t.Fatalf("unexpected expense: %+v", e)
	}

	list, err := fx.ledger.ListFamilyExpenses(ctx, f.ID)
	if err != nil || len(list) != 1 || list[0].ID != e.ID {
		t.Fatalf("expected one expense, got %+v %v", list, err)
	}

	removed, err := fx.registry.DeleteFamily(ctx, f.ID)
	if err != nil || removed.ID != f.ID {
		t.Fatalf("delete family: %+v %v", removed, err)
	}

	list, err = fx.ledger.ListFamilyExpenses(ctx, f.ID)
	if err != nil || len(list) != 1 || list[0].ID != e.ID {
		t.Fatalf("expense must survive family deletion, got %+v %v", list, err)
	}
}

func TestSmithScenarioMemory(t *testing.T) {
	fx := newFixture(t, true)
	runSmithScenario(t, fx)

	want := []amqp.EventType{amqp.FamilyCreated, amqp.ExpenseCreated, amqp.FamilyDeleted}
	if got := fx.events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events=%v want %v", got, want)
	}
}

func TestSmithScenarioSQLite(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "famledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	fx := newFixtureWith(t, true,
		sqlite.NewMap[core.Family](db, store.CollectionFamilies),
		sqlite.NewMap[core.FamilyExpense](db, store.CollectionExpenses))
	runSmithScenario(t, fx)
}

func TestSQLiteRoundTripWithWallClock(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "famledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	rt := NewRuntime(nil, nil)
	reg := NewFamilyRegistry(rt, sqlite.NewMap[core.Family](db, store.CollectionFamilies), RegistryOptions{EnforceOwnership: true})
	led := NewExpenseLedger(rt, reg, sqlite.NewMap[core.FamilyExpense](db, store.CollectionExpenses), LedgerOptions{SnapshotFamilyName: true})
	ctx := as("alice")

	added, err := reg.AddFamily(ctx, smith)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := reg.GetFamily(ctx, added.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, added) {
		t.Fatalf("get returned %+v, add returned %+v", got, added)
	}

	updated, err := reg.UpdateFamily(ctx, added.ID, core.FamilyPayload{Name: "Smith-Jones", Members: []string{"John"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ = reg.GetFamily(ctx, added.ID); !reflect.DeepEqual(got, updated) {
		t.Fatalf("get after update returned %+v, update returned %+v", got, updated)
	}

	e, err := led.AddFamilyExpense(ctx, core.FamilyExpensePayload{FamilyID: added.ID, Amount: "12.50", Labels: []string{"food"}})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	list, err := led.ListFamilyExpenses(ctx, added.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !reflect.DeepEqual(list[0], e) {
		t.Fatalf("list returned %+v, add returned %+v", list, e)
	}
}

func TestDefaultClockIsUTCWithoutMonotonic(t *testing.T) {
	now := Now()
	if now.Location() != time.UTC {
		t.Fatalf("location=%v want UTC", now.Location())
	}
	if now != now.Round(0) {
		t.Fatal("default clock carries a monotonic reading")
	}
}
