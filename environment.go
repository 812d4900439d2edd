// Environment is the top-level handle a caller opens: one backing Device
// (file or in-memory), one Cache/Freelist/PageManager, the file header's
// per-database slot table, and one coarse mutex serializing structural
// operations.
//
// Construction follows open-or-create-the-file, then mmap-or-not, then
// read-or-write-the-header sequencing, generalized from a single
// hardwired tree file into a multi-database file header plus
// per-database Btree trees opened against a shared PageManager.
package bltree

import (
	"sync"

	"github.com/latticedb/bltree/btree"
	"github.com/latticedb/bltree/blob"
	"github.com/latticedb/bltree/codec"
	"github.com/latticedb/bltree/device"
	"github.com/latticedb/bltree/errkit"
	"github.com/latticedb/bltree/node"
	"github.com/latticedb/bltree/storage/buffer"
	"github.com/latticedb/bltree/storage/page"
)

// Environment is an open database file (or in-memory arena) with zero or
// more named databases.
type Environment struct {
	mu sync.Mutex

	dev    device.Device
	cache  *buffer.Cache
	free   *buffer.Freelist
	pm     *buffer.PageManager
	header *fileHeader
	cfg    EnvironmentConfig

	blobs *blob.Manager

	headerPageAddr int64
}

// CreateEnvironment initializes a fresh environment at cfg.Path (or a
// fresh in-memory arena if cfg.Flags.Has(FlagInMemory)), writes page 0's
// file header, and returns it open.
func CreateEnvironment(cfg EnvironmentConfig) (*Environment, error) {
	pageSize := cfg.pageSizeOrDefault()
	if err := validatePageSize(pageSize); err != nil {
		return nil, err
	}

	dev, err := openDevice(cfg, true)
	if err != nil {
		return nil, err
	}

	cacheCap := cfg.CacheCapacityBytes
	if cfg.Flags.Has(FlagCacheUnlimited) {
		cacheCap = 0
	}
	cache := buffer.NewCache(cacheCap, pageSize)
	free := buffer.NewFreelist()
	pm := buffer.NewPageManager(dev, cache, free)

	header := newFileHeader(cfg)
	if header.encodedSize() > int(pageSize)-page.HeaderSize {
		return nil, errkit.NewError(errkit.KindInvParameter, "bltree: max_databases does not fit in one page")
	}

	headerPg, err := pm.AllocPage(page.TypeFileHeader)
	if err != nil {
		return nil, err
	}
	copy(headerPg.Data, header.encode())
	headerPg.SetDirty(true)

	env := &Environment{
		dev: dev, cache: cache, free: free, pm: pm,
		header: header, cfg: cfg, headerPageAddr: headerPg.Addr,
	}
	env.blobs = blob.New(pm, codec.None{})

	if err := pm.FlushAll(); err != nil {
		return nil, err
	}
	return env, nil
}

// OpenEnvironment opens a previously created on-disk environment, reading
// back the file header and persisted freelist/page-manager chains.
func OpenEnvironment(cfg EnvironmentConfig) (*Environment, error) {
	if cfg.Flags.Has(FlagInMemory) {
		return nil, errkit.NewError(errkit.KindInvParameter, "bltree: an in-memory environment cannot be reopened")
	}
	dev, err := openDevice(cfg, false)
	if err != nil {
		return nil, err
	}

	cacheCap := cfg.CacheCapacityBytes
	if cfg.Flags.Has(FlagCacheUnlimited) {
		cacheCap = 0
	}
	cache := buffer.NewCache(cacheCap, dev.PageSize())
	free := buffer.NewFreelist()
	pm := buffer.NewPageManager(dev, cache, free)

	headerPg, err := pm.FetchPage(0)
	if err != nil {
		return nil, err
	}
	header, err := decodeFileHeader(headerPg.Data)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		dev: dev, cache: cache, free: free, pm: pm,
		header: header, cfg: cfg, headerPageAddr: headerPg.Addr,
	}
	env.blobs = blob.New(pm, codec.None{})

	if header.freelistRoot >= 0 {
		entries, err := loadFreelistChain(pm, header.freelistRoot)
		if err != nil {
			return nil, err
		}
		free.Load(entries)
	}
	return env, nil
}

func openDevice(cfg EnvironmentConfig, create bool) (device.Device, error) {
	pageSize := cfg.pageSizeOrDefault()
	if cfg.Flags.Has(FlagInMemory) {
		return device.NewMemDevice(pageSize), nil
	}
	return device.OpenFileDevice(device.OpenFileDeviceOptions{
		Path:     cfg.Path,
		PageSize: pageSize,
		Create:   create,
		Direct:   cfg.Flags.Has(FlagDisableMmap),
	})
}

func validatePageSize(pageSize uint32) error {
	if pageSize == 1024 || (pageSize%2048 == 0 && pageSize > 0) {
		return nil
	}
	return errkit.NewError(errkit.KindInvPageSize, "bltree: page size must be 1024 or a multiple of 2048")
}

// CreateDatabase allocates a fresh, empty Btree in an unused slot of the
// file header's per-database table and returns it open.
func (e *Environment) CreateDatabase(dcfg DatabaseConfig) (*btree.Tree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Flags.Has(FlagReadOnly) {
		return nil, ErrDbReadOnly
	}
	for _, s := range e.header.slots {
		if s.inUse && s.name == dcfg.Name {
			return nil, errkit.NewError(errkit.KindInvParameter, "bltree: database "+dcfg.Name+" already exists")
		}
	}
	slotIdx := -1
	for i, s := range e.header.slots {
		if !s.inUse {
			slotIdx = i
			break
		}
	}
	if slotIdx < 0 {
		return nil, errkit.NewError(errkit.KindLimitsReached, "bltree: max_databases slots exhausted")
	}

	ncfg, err := e.nodeConfigFor(dcfg)
	if err != nil {
		return nil, err
	}
	tr, err := btree.Create(e.pm, ncfg)
	if err != nil {
		return nil, err
	}

	e.header.slots[slotIdx] = databaseSlot{
		inUse:             true,
		name:              dcfg.Name,
		flags:             databaseSlotFlags(dcfg),
		keyType:           dcfg.KeyType,
		keySize:           dcfg.KeySize,
		recordSize:        dcfg.RecordSize,
		rootPage:          tr.RootAddr(),
		keyCompression:    dcfg.KeyCompressor,
		recordCompression: dcfg.RecordCompressor,
	}
	if err := e.persistHeader(); err != nil {
		return nil, err
	}
	return tr, nil
}

// OpenDatabase reopens a previously created database by name.
func (e *Environment) OpenDatabase(name string) (*btree.Tree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.header.slots {
		if s.inUse && s.name == name {
			dcfg := DatabaseConfig{
				Name: s.name, KeyType: s.keyType, KeySize: s.keySize,
				RecordSize: s.recordSize, KeyCompressor: s.keyCompression,
				RecordCompressor: s.recordCompression,
				AllowDuplicates:  s.flags&uint32(FlagEnableDuplicateKeys) != 0,
			}
			ncfg, err := e.nodeConfigFor(dcfg)
			if err != nil {
				return nil, err
			}
			return btree.Open(e.pm, ncfg, s.rootPage), nil
		}
	}
	return nil, errkit.NewError(errkit.KindInvParameter, "bltree: no database named "+name)
}

// EraseDatabase removes a database's slot from the header (its pages are
// not individually walked and freed — reclaiming a whole tree's page
// extent is deferred to the journal/vacuum collaborator, out of scope
// here).
func (e *Environment) EraseDatabase(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.Flags.Has(FlagReadOnly) {
		return ErrDbReadOnly
	}
	for i, s := range e.header.slots {
		if s.inUse && s.name == name {
			e.header.slots[i] = databaseSlot{}
			return e.persistHeader()
		}
	}
	return errkit.NewError(errkit.KindInvParameter, "bltree: no database named "+name)
}

func databaseSlotFlags(dcfg DatabaseConfig) uint32 {
	var f uint32
	if dcfg.AllowDuplicates {
		f |= uint32(FlagEnableDuplicateKeys)
	}
	return f
}

// nodeConfigFor maps a DatabaseConfig onto the node.Config the btree
// package needs, wiring in e's uncompressed blob manager for extended
// keys and a blob manager using the database's RecordCompressor for
// records, so oversized keys/records spill to dedicated blob pages.
func (e *Environment) nodeConfigFor(dcfg DatabaseConfig) (node.Config, error) {
	pageSize := e.dev.PageSize()

	keyCompressor, err := compressorFor(dcfg.KeyCompressor)
	if err != nil {
		return node.Config{}, err
	}
	recCompressor, err := compressorFor(dcfg.RecordCompressor)
	if err != nil {
		return node.Config{}, err
	}

	ncfg := node.Config{
		KeyBlobs:           e.blobs,
		ExtendedThreshold:  int(dcfg.extendedKeyThresholdFor(pageSize)),
		KeyCompressor:      keyCompressor,
		UpfrontOffsetWidth: upfrontOffsetWidthFor(pageSize),
		RecordBlobs:        blob.New(e.pm, recCompressor),
		HasDuplicates:      dcfg.AllowDuplicates,
		DuplicateThreshold: int(dcfg.duplicateThresholdFor(pageSize)),
	}

	switch dcfg.KeyType {
	case KeyTypeUint8, KeyTypeUint16, KeyTypeUint32, KeyTypeUint64:
		width := uintWidthFor(dcfg.KeyType)
		ncfg.KeyKind = node.KeyKindPOD
		ncfg.KeyWidth = width
		ncfg.Comparator = btree.UintComparator(width)
	case KeyTypeReal32:
		ncfg.KeyKind = node.KeyKindPOD
		ncfg.KeyWidth = 4
		ncfg.Comparator = btree.FloatComparator(4)
	case KeyTypeReal64:
		ncfg.KeyKind = node.KeyKindPOD
		ncfg.KeyWidth = 8
		ncfg.Comparator = btree.FloatComparator(8)
	case KeyTypeBinary:
		if dcfg.KeySize == 0 {
			ncfg.KeyKind = node.KeyKindVariable
		} else {
			ncfg.KeyKind = node.KeyKindBinary
			ncfg.KeyWidth = int(dcfg.KeySize)
		}
		ncfg.Comparator = btree.BytesComparator()
	default: // KeyTypeCustom: no caller-supplied comparator hook exists
		// yet (see DESIGN.md Open Questions); treated as variable-length
		// bytes with memcmp ordering.
		ncfg.KeyKind = node.KeyKindVariable
		ncfg.Comparator = btree.BytesComparator()
	}

	if dcfg.RecordSize == 0 {
		ncfg.RecordKind = node.RecordKindDefault
	} else if dcfg.RecordSize <= 8 || e.cfg.Flags.Has(FlagForceRecordsInline) {
		ncfg.RecordKind = node.RecordKindInline
		ncfg.RecordWidth = int(dcfg.RecordSize)
		if ncfg.RecordWidth == 0 {
			ncfg.RecordWidth = 8
		}
	} else {
		ncfg.RecordKind = node.RecordKindPod
		ncfg.RecordWidth = int(dcfg.RecordSize)
	}
	return ncfg, nil
}

func uintWidthFor(kt KeyType) int {
	switch kt {
	case KeyTypeUint8:
		return 1
	case KeyTypeUint16:
		return 2
	case KeyTypeUint32:
		return 4
	default:
		return 8
	}
}

func upfrontOffsetWidthFor(pageSize uint32) int {
	if pageSize <= 65536 {
		return 2
	}
	return 4
}

func compressorFor(c Compressor) (codec.Compressor, error) {
	switch c {
	case CompressorNone:
		return codec.None{}, nil
	case CompressorSnappy:
		return codec.Snappy{}, nil
	case CompressorZlib:
		return codec.Zlib{}, nil
	default:
		return nil, errkit.NewError(errkit.KindNotImplemented, "bltree: unimplemented compressor")
	}
}

// persistHeader re-encodes the in-memory file header into page 0 and
// marks it dirty; callers still need Flush to make it durable.
func (e *Environment) persistHeader() error {
	pg, err := e.pm.FetchPage(e.headerPageAddr)
	if err != nil {
		return err
	}
	copy(pg.Data, e.header.encode())
	pg.SetDirty(true)
	return nil
}

// Flush persists the file header, the freelist chain, and every dirty
// page to the device.
func (e *Environment) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Environment) flushLocked() error {
	if err := e.persistHeader(); err != nil {
		return err
	}
	root, err := persistFreelistChain(e.pm, e.free, e.header.freelistRoot)
	if err != nil {
		return err
	}
	if root != e.header.freelistRoot {
		e.header.freelistRoot = root
		if err := e.persistHeader(); err != nil {
			return err
		}
	}
	return e.pm.FlushAll()
}

// Close flushes and releases the environment's device.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.flushLocked(); err != nil {
		return err
	}
	return e.dev.Close()
}

// PageManager exposes the underlying storage/buffer.PageManager, e.g. for
// a caller that wants Stats()-style introspection.
func (e *Environment) PageManager() *buffer.PageManager { return e.pm }
