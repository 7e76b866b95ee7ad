package ledger

import (
	"sync"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// Field is the transaction field a patch rewrites.
type Field int

const (
	CategoryField Field = iota
	SubcategoryField
)

func (f Field) String() string {
	if f == SubcategoryField {
		return "subcategory"
	}
	return "category"
}

// PatchState tracks a local patch through its two phases.
type PatchState int

const (
	// Pending: applied locally, backend has not answered.
	Pending PatchState = iota
	// Confirmed: backend accepted, waiting for an authoritative refetch.
	Confirmed
)

// Patch is a local rewrite of one field of one transaction.
type Patch struct {
	Field Field
	Value domain.ID
	Label string
	State PatchState
	seq   uint64
}

type patchKey struct {
	id    domain.ID
	field Field
}

// Overlay layers local category patches over fetched transactions until a
// refetch shows what the backend actually stored.
type Overlay struct {
	mu      sync.Mutex
	patches map[patchKey]Patch
	seq     uint64
	log     zerolog.Logger
}

// NewOverlay creates an empty overlay.
func NewOverlay(log zerolog.Logger) *Overlay {
	return &Overlay{patches: make(map[patchKey]Patch), log: log}
}

// Begin records a pending patch and returns its sequence number.
func (o *Overlay) Begin(id domain.ID, field Field, value domain.ID, label string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	o.patches[patchKey{id, field}] = Patch{Field: field, Value: value, Label: label, State: Pending, seq: o.seq}
	return o.seq
}

// Confirm marks the patch started with seq as accepted by the backend.
// A newer patch of the same field is left alone.
func (o *Overlay) Confirm(id domain.ID, field Field, seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := patchKey{id, field}
	if p, ok := o.patches[k]; ok && p.seq == seq {
		p.State = Confirmed
		o.patches[k] = p
	}
}

// Rollback removes the patch started with seq.
func (o *Overlay) Rollback(id domain.ID, field Field, seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := patchKey{id, field}
	if p, ok := o.patches[k]; ok && p.seq == seq {
		delete(o.patches, k)
	}
}

// Get returns the patch of a field, if any.
func (o *Overlay) Get(id domain.ID, field Field) (Patch, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.patches[patchKey{id, field}]
	return p, ok
}

// Len returns the number of live patches.
func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.patches)
}

// Apply returns txns with every live patch applied. The input is not
// modified. A category patch clears the subcategory unless a newer
// subcategory patch exists.
func (o *Overlay) Apply(txns []domain.Transaction) []domain.Transaction {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Transaction, len(txns))
	for i, t := range txns {
		cat, hasCat := o.patches[patchKey{t.ID, CategoryField}]
		sub, hasSub := o.patches[patchKey{t.ID, SubcategoryField}]
		if hasCat {
			t.CategoryID, t.Category = cat.Value, cat.Label
			t.SubcategoryID, t.Subcategory = "", ""
		}
		if hasSub && (!hasCat || sub.seq > cat.seq) {
			t.SubcategoryID, t.Subcategory = sub.Value, sub.Label
		}
		out[i] = t
	}
	return out
}

// Reconcile compares an authoritative refetch with the live patches.
// Confirmed patches are dropped; a refetch that disagrees with one is
// logged. Pending patches stay in place.
func (o *Overlay) Reconcile(fresh []domain.Transaction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	byID := make(map[domain.ID]domain.Transaction, len(fresh))
	for _, t := range fresh {
		byID[t.ID] = t
	}
	for k, p := range o.patches {
		if p.State != Confirmed {
			continue
		}
		if t, ok := byID[k.id]; ok {
			got := t.CategoryID
			if k.field == SubcategoryField {
				got = t.SubcategoryID
			}
			if got != p.Value {
				o.log.Warn().
					Str("txn", k.id.String()).
					Str("field", k.field.String()).
					Str("expected", p.Value.String()).
					Str("actual", got.String()).
					Msg("Backend value differs from confirmed patch")
			}
		}
		delete(o.patches, k)
	}
}
