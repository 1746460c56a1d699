package push

import (
	"context"
	"fmt"
	"sync"

	"github.com/jordanlanch/funnelsync/pkg/crm"
	"github.com/jordanlanch/funnelsync/pkg/fieldstore"
	"github.com/jordanlanch/funnelsync/pkg/ledger"
	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// fakeCRM is an in-memory location with call accounting
type fakeCRM struct {
	mu       sync.Mutex
	values   []crm.CustomValue
	nextID   int
	fetchErr error
	failOn   map[string]error
	onWrite  func(name string)
	fetches  int
	creates  []string
	updates  []string
}

func newFakeCRM(initial ...crm.CustomValue) *fakeCRM {
	return &fakeCRM{values: initial, failOn: map[string]error{}}
}

func (f *fakeCRM) FetchAll(_ context.Context, _, _ string) ([]crm.CustomValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]crm.CustomValue, len(f.values))
	copy(out, f.values)
	return out, nil
}

func (f *fakeCRM) Create(_ context.Context, _, _, name, value string) (crm.CustomValue, error) {
	f.mu.Lock()
	f.creates = append(f.creates, name)
	hook := f.onWrite
	err := f.failOn[name]
	var cv crm.CustomValue
	if err == nil {
		f.nextID++
		cv = crm.CustomValue{ID: fmt.Sprintf("cv-%d", f.nextID), Name: name, Value: value}
		f.values = append(f.values, cv)
	}
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return cv, err
}

func (f *fakeCRM) Update(_ context.Context, _, _, id, name, value string) (crm.CustomValue, error) {
	f.mu.Lock()
	f.updates = append(f.updates, name)
	hook := f.onWrite
	err := f.failOn[name]
	var cv crm.CustomValue
	if err == nil {
		for i := range f.values {
			if f.values[i].ID == id {
				f.values[i].Name = name
				f.values[i].Value = value
				cv = f.values[i]
			}
		}
	}
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return cv, err
}

func (f *fakeCRM) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.updates)
}

func (f *fakeCRM) byName() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.values))
	for _, v := range f.values {
		out[v.Name] = v.Value
	}
	return out
}

// memLedger keeps operations in memory and snapshots every update
type memLedger struct {
	mu        sync.Mutex
	ops       map[string]*ledger.Operation
	order     []string
	snapshots []ledger.Operation
	updateErr error
}

func newMemLedger() *memLedger {
	return &memLedger{ops: map[string]*ledger.Operation{}}
}

func (m *memLedger) Create(_ context.Context, op *ledger.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *op
	m.ops[op.ID] = &cp
	m.order = append(m.order, op.ID)
	return nil
}

func (m *memLedger) Update(_ context.Context, op *ledger.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.ops[op.ID]; !ok {
		return ledger.ErrNotFound
	}
	cp := *op
	m.ops[op.ID] = &cp
	m.snapshots = append(m.snapshots, cp)
	return nil
}

func (m *memLedger) Get(_ context.Context, id string) (*ledger.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func (m *memLedger) ListByFunnel(_ context.Context, funnelID string, limit int) ([]*ledger.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.Operation
	for i := len(m.order) - 1; i >= 0; i-- {
		op := m.ops[m.order[i]]
		if op.FunnelID != funnelID {
			continue
		}
		cp := *op
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memLedger) LatestFinished(_ context.Context, funnelID string) (*ledger.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		op := m.ops[m.order[i]]
		if op.FunnelID == funnelID && op.Status != ledger.StatusInProgress {
			cp := *op
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeFields serves fixed content for one funnel
type fakeFields struct {
	sections      []vault.Section
	sectionIssues []vault.Issue
	fields        []vault.Field
	issues        []vault.Issue
	conn          *fieldstore.Connection
	err           error
}

func (f *fakeFields) Sections(_ context.Context, _ string) ([]vault.Section, []vault.Issue, error) {
	return f.sections, f.sectionIssues, f.err
}

func (f *fakeFields) Fields(_ context.Context, _ string) ([]vault.Field, []vault.Issue, error) {
	return f.fields, f.issues, f.err
}

func (f *fakeFields) Connection(_ context.Context, _ string) (*fieldstore.Connection, error) {
	if f.conn == nil {
		return nil, fieldstore.ErrNoConnection
	}
	return f.conn, nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	ops []ledger.Status
}

func (n *recordingNotifier) NotifyPush(_ context.Context, op *ledger.Operation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ops = append(n.ops, op.Status)
	return nil
}

type recordingRecorder struct {
	statuses []ledger.Status
	running  int
	rejected int
}

func (r *recordingRecorder) PushStarted()         { r.running++ }
func (r *recordingRecorder) PushEnded()           { r.running-- }
func (r *recordingRecorder) RecordLeaseRejected() { r.rejected++ }

func (r *recordingRecorder) RecordPush(op *ledger.Operation) {
	r.statuses = append(r.statuses, op.Status)
}

func newTestEngine(remote CRM, ops OperationStore) *Engine {
	return NewEngine(remote, ops, EngineOptions{
		NewPacer:         func() Pacer { return NoPause },
		ProgressInterval: 2,
	})
}
