// Package node implements BtreeNode framing: the per-page layout
// `[NodeHeader | KeyList region | RecordList region]`, the coordinated
// boundary shift between those two regions, and the node-level dispatch
// across whichever KeyList/RecordList variant a database was configured
// with.
//
// Grounded on a page layout sharing one page between a slot array and
// key bytes growing toward each other, generalized from two hardwired
// regions into two pluggable regions whose variant is chosen by Config,
// so KeyList/RecordList implementations are swappable per database
// rather than one built-in page format.
package node

import (
	"github.com/latticedb/bltree/codec"
	"github.com/latticedb/bltree/errkit"
	"github.com/latticedb/bltree/keylist"
	"github.com/latticedb/bltree/recordlist"
	"github.com/latticedb/bltree/upfront"
)

// KeyKind selects a node's KeyList variant.
type KeyKind int

const (
	KeyKindPOD KeyKind = iota
	KeyKindBinary
	KeyKindVariable
	KeyKindZint32
)

// RecordKind selects a leaf's non-duplicate RecordList variant. Internal
// nodes always use InternalRecord regardless of this setting.
type RecordKind int

const (
	RecordKindInline RecordKind = iota
	RecordKindPod
	RecordKindDefault
)

const (
	flagLeaf          uint8 = 1 << 0
	flagHasDuplicates uint8 = 1 << 1
)

// Header layout within a page body: count, flags, the
// KeyList/RecordList boundary, leaf sibling pointers, and an internal
// node's rightmost child pointer.
const (
	offCount        = 0  // uint16
	offFlags        = 2  // uint8
	offRangeSplit   = 3  // uint16
	offLeftSibling  = 5  // int64
	offRightSibling = 13 // int64
	offPtrDown      = 21 // int64

	// HeaderSize is the fixed prefix every node page body reserves before
	// its KeyList/RecordList regions begin.
	HeaderSize = 29
)

// Config describes how to construct or reopen a node's KeyList and
// RecordList, one per database's declared key type and record shape.
type Config struct {
	KeyKind            KeyKind
	KeyWidth           int // POD/Binary fixed width
	Comparator         keylist.Comparator
	KeyBlobs           keylist.BlobStore
	ExtendedThreshold  int
	KeyCompressor      codec.Compressor
	ZintCodec          codec.BlockCodec
	ZintCodecID        byte
	ZintMaxBlocks      int
	UpfrontOffsetWidth int // : 2 bytes <=64KiB pages, else 4

	RecordKind         RecordKind
	RecordWidth        int // InlineRecord/PodRecord fixed width
	RecordBlobs        recordlist.BlobStore
	HasDuplicates      bool
	DuplicateThreshold int
}

// Node wraps one page body, exposing a uniform public contract over
// whichever KeyList/RecordList variant Config names.
type Node struct {
	cfg  Config
	body []byte
	leaf bool

	keys    keylist.KeyList
	records recordlist.RecordList // nil when HasDuplicates
	dup     *recordlist.Duplicate // nil unless HasDuplicates
}

// NewLeaf initializes a fresh, empty leaf over body.
func NewLeaf(body []byte, cfg Config) (*Node, error) {
	n, err := newEmpty(body, cfg, true)
	if err != nil {
		return nil, err
	}
	n.SetLeftSibling(-1)
	n.SetRightSibling(-1)
	return n, nil
}

// NewInternal initializes a fresh, empty internal node over body.
// Internal nodes never carry duplicates; HasDuplicates in cfg is ignored
// for them.
func NewInternal(body []byte, cfg Config) (*Node, error) {
	n, err := newEmpty(body, cfg, false)
	if err != nil {
		return nil, err
	}
	n.SetPtrDown(-1)
	return n, nil
}

func newEmpty(body []byte, cfg Config, leaf bool) (*Node, error) {
	if len(body) <= HeaderSize {
		return nil, errkit.NewError(errkit.KindInvPageSize, "node: body too small for header")
	}
	for i := range body {
		body[i] = 0
	}
	n := &Node{cfg: cfg, body: body, leaf: leaf}
	if leaf {
		body[offFlags] = flagLeaf
		if cfg.HasDuplicates {
			body[offFlags] |= flagHasDuplicates
		}
	}
	n.setRangeSplit((len(body) - HeaderSize) / 2)
	if err := n.createRegions(); err != nil {
		return nil, err
	}
	return n, nil
}

// Open reconstructs a Node over a previously initialized body, wiring up
// the KeyList/RecordList variants Config names against the header's
// persisted count/range_split.
func Open(body []byte, cfg Config) (*Node, error) {
	if len(body) <= HeaderSize {
		return nil, errkit.NewError(errkit.KindInvPageSize, "node: body too small for header")
	}
	n := &Node{cfg: cfg, body: body, leaf: body[offFlags]&flagLeaf != 0}
	if err := n.openRegions(); err != nil {
		return nil, err
	}
	return n, nil
}

// --- header accessors ---

func (n *Node) Count() int       { return int(getU16(n.body[offCount:])) }
func (n *Node) setCount(v int)   { putU16(n.body[offCount:], uint16(v)) }
func (n *Node) IsLeaf() bool     { return n.leaf }
func (n *Node) HasDuplicates() bool { return n.body[offFlags]&flagHasDuplicates != 0 }
func (n *Node) rangeSplit() int  { return int(getU16(n.body[offRangeSplit:])) }
func (n *Node) setRangeSplit(v int) { putU16(n.body[offRangeSplit:], uint16(v)) }

func (n *Node) LeftSibling() int64     { return getI64(n.body[offLeftSibling:]) }
func (n *Node) SetLeftSibling(v int64) { putI64(n.body[offLeftSibling:], v) }
func (n *Node) RightSibling() int64     { return getI64(n.body[offRightSibling:]) }
func (n *Node) SetRightSibling(v int64) { putI64(n.body[offRightSibling:], v) }

// PtrDown is an internal node's rightmost child, stored in a dedicated
// extra slot rather than as the (N+1)th key-paired child.
func (n *Node) PtrDown() int64     { return getI64(n.body[offPtrDown:]) }
func (n *Node) SetPtrDown(v int64) { putI64(n.body[offPtrDown:], v) }

func (n *Node) keyRegion() []byte { return n.body[HeaderSize : HeaderSize+n.rangeSplit()] }
func (n *Node) recRegion() []byte { return n.body[HeaderSize+n.rangeSplit():] }

// --- region construction ---

func (n *Node) createRegions() error {
	kl, err := createKeyList(n.cfg, n.keyRegion())
	if err != nil {
		return err
	}
	n.keys = kl

	rr := n.recRegion()
	if !n.leaf {
		n.records = recordlist.NewInternalRecord(rr, 0)
		return nil
	}
	if n.cfg.HasDuplicates {
		cap := estimateUpfrontCapacity(len(rr), n.cfg.UpfrontOffsetWidth)
		idx, err := upfront.Create(rr, cap, n.cfg.UpfrontOffsetWidth)
		if err != nil {
			return err
		}
		n.dup = recordlist.NewDuplicate(idx, n.cfg.RecordBlobs, n.dupRecSize(), n.cfg.DuplicateThreshold)
		return nil
	}
	rl, err := createRecordList(n.cfg, rr)
	if err != nil {
		return err
	}
	n.records = rl
	return nil
}

func (n *Node) openRegions() error {
	count := n.Count()
	kl, err := openKeyList(n.cfg, n.keyRegion(), count)
	if err != nil {
		return err
	}
	n.keys = kl

	rr := n.recRegion()
	if !n.leaf {
		n.records = recordlist.NewInternalRecord(rr, count)
		return nil
	}
	if n.cfg.HasDuplicates {
		idx := upfront.Open(rr, n.cfg.UpfrontOffsetWidth)
		n.dup = recordlist.NewDuplicate(idx, n.cfg.RecordBlobs, n.dupRecSize(), n.cfg.DuplicateThreshold)
		return nil
	}
	rl, err := openRecordList(n.cfg, rr, count)
	if err != nil {
		return err
	}
	n.records = rl
	return nil
}

func (n *Node) dupRecSize() int {
	if n.cfg.RecordKind == RecordKindDefault {
		return 0
	}
	return n.cfg.RecordWidth
}

// estimateUpfrontCapacity picks a descriptor-table size for a fresh
// UpfrontIndex: room for the descriptor table plus a conservative
// per-slot payload floor, capped at the 16-bit descriptor count field.
func estimateUpfrontCapacity(regionLen, offsetWidth int) uint16 {
	perSlot := offsetWidth + 1 + 4
	c := regionLen / perSlot
	if c > 65535 {
		c = 65535
	}
	if c < 1 {
		c = 1
	}
	return uint16(c)
}

func createKeyList(cfg Config, region []byte) (keylist.KeyList, error) {
	switch cfg.KeyKind {
	case KeyKindPOD:
		return keylist.NewPOD(region, cfg.KeyWidth, 0), nil
	case KeyKindBinary:
		return keylist.NewBinary(region, cfg.KeyWidth, 0), nil
	case KeyKindVariable:
		cap := estimateUpfrontCapacity(len(region), cfg.UpfrontOffsetWidth)
		idx, err := upfront.Create(region, cap, cfg.UpfrontOffsetWidth)
		if err != nil {
			return nil, err
		}
		return keylist.NewVariable(idx, cfg.KeyBlobs, cfg.ExtendedThreshold, cfg.KeyCompressor), nil
	case KeyKindZint32:
		return keylist.CreateZint32(region, cfg.ZintMaxBlocks, cfg.ZintCodec, cfg.ZintCodecID)
	default:
		return nil, errkit.NewError(errkit.KindInvParameter, "node: unknown KeyKind")
	}
}

func openKeyList(cfg Config, region []byte, count int) (keylist.KeyList, error) {
	switch cfg.KeyKind {
	case KeyKindPOD:
		return keylist.NewPOD(region, cfg.KeyWidth, count), nil
	case KeyKindBinary:
		return keylist.NewBinary(region, cfg.KeyWidth, count), nil
	case KeyKindVariable:
		idx := upfront.Open(region, cfg.UpfrontOffsetWidth)
		return keylist.NewVariable(idx, cfg.KeyBlobs, cfg.ExtendedThreshold, cfg.KeyCompressor), nil
	case KeyKindZint32:
		return keylist.OpenZint32(region, cfg.ZintMaxBlocks, cfg.ZintCodec), nil
	default:
		return nil, errkit.NewError(errkit.KindInvParameter, "node: unknown KeyKind")
	}
}

func createRecordList(cfg Config, region []byte) (recordlist.RecordList, error) {
	switch cfg.RecordKind {
	case RecordKindInline:
		return recordlist.NewInlineRecord(region, cfg.RecordWidth, 0), nil
	case RecordKindPod:
		return recordlist.NewPodRecord(region, cfg.RecordWidth, 0), nil
	case RecordKindDefault:
		return recordlist.NewDefaultRecord(region, 0, cfg.RecordBlobs), nil
	default:
		return nil, errkit.NewError(errkit.KindInvParameter, "node: unknown RecordKind")
	}
}

func openRecordList(cfg Config, region []byte, count int) (recordlist.RecordList, error) {
	switch cfg.RecordKind {
	case RecordKindInline:
		return recordlist.NewInlineRecord(region, cfg.RecordWidth, count), nil
	case RecordKindPod:
		return recordlist.NewPodRecord(region, cfg.RecordWidth, count), nil
	case RecordKindDefault:
		return recordlist.NewDefaultRecord(region, count, cfg.RecordBlobs), nil
	default:
		return nil, errkit.NewError(errkit.KindInvParameter, "node: unknown RecordKind")
	}
}

func getU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func getI64(b []byte) int64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return int64(v)
}

func putI64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}
