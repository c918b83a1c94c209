package spends

import (
	"fmt"
	"slices"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// idKind tells apart the three kinds of asset id.
type idKind uint8

const (
	idXch idKind = iota
	idExisting
	idNew
)

// ID identifies an asset in a transaction. It is XCH, an existing asset
// by its asset or launcher id, or an asset created by the action at an
// index of the action list.
type ID struct {
	kind  idKind
	hash  clvm.Bytes32
	index int
}

// XCH is the id of the native asset.
var XCH = ID{}

// Existing returns the id of an asset that exists before the transaction.
func Existing(hash clvm.Bytes32) ID {
	return ID{kind: idExisting, hash: hash}
}

// NewAsset returns the id of the asset created by the action at the index.
func NewAsset(index int) ID {
	return ID{kind: idNew, index: index}
}

// IsXch reports whether the id is the native asset.
func (id ID) IsXch() bool {
	return id.kind == idXch
}

// Hash returns the asset or launcher id of an existing asset.
func (id ID) Hash() (clvm.Bytes32, bool) {
	return id.hash, id.kind == idExisting
}

// String implements the fmt.Stringer interface.
func (id ID) String() string {
	switch id.kind {
	case idExisting:
		return id.hash.Hex()
	case idNew:
		return fmt.Sprintf("new:%d", id.index)
	}
	return "xch"
}

func (id ID) compare(o ID) int {
	if id.kind != o.kind {
		return int(id.kind) - int(o.kind)
	}
	if c := id.hash.Compare(o.hash); c != 0 {
		return c
	}
	return id.index - o.index
}

// =============================================================================

// Delta is the amount of an asset the actions bring into and take out of
// the transaction.
type Delta struct {
	Input  uint64
	Output uint64
}

// Deltas is the ledger of every asset the actions touch.
type Deltas struct {
	items     map[ID]*Delta
	xchNeeded bool
}

// NewDeltas constructs an empty ledger.
func NewDeltas() *Deltas {
	return &Deltas{items: make(map[ID]*Delta)}
}

// DeltasFrom computes the ledger of the actions without building anything.
func DeltasFrom(actions []Action) *Deltas {
	d := NewDeltas()
	for i, a := range actions {
		a.CalculateDelta(d, i)
	}
	return d
}

// Update returns the delta of the asset for the caller to change.
func (d *Deltas) Update(id ID) *Delta {
	delta, exists := d.items[id]
	if !exists {
		delta = &Delta{}
		d.items[id] = delta
	}
	return delta
}

// Get returns the delta of the asset.
func (d *Deltas) Get(id ID) Delta {
	if delta, exists := d.items[id]; exists {
		return *delta
	}
	return Delta{}
}

// SetXchNeeded records that the transaction needs an XCH coin even if
// the XCH delta is zero.
func (d *Deltas) SetXchNeeded() {
	d.xchNeeded = true
}

// XchNeeded reports whether the transaction needs an XCH coin.
func (d *Deltas) XchNeeded() bool {
	return d.xchNeeded || d.Get(XCH) != Delta{}
}

// IDs returns the assets in the ledger in a stable order.
func (d *Deltas) IDs() []ID {
	ids := make([]ID, 0, len(d.items))
	for id := range d.items {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ID.compare)
	return ids
}
