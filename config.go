package bltree

// EnvironmentFlags are recognized by OpenEnvironment/CreateEnvironment.
// Replaces a single hardcoded constructor argument list with an
// explicit, persistable configuration struct.
type EnvironmentFlags uint32

const (
	// FlagInMemory: no backing file; every page lives only in the cache
	// and is "allocated" immediately (device/mem_device.go).
	FlagInMemory EnvironmentFlags = 1 << iota
	// FlagReadOnly makes CreateDatabase and EraseDatabase fail with
	// KindDbReadOnly. Insert and Erase on a *btree.Tree returned by
	// CreateDatabase/OpenDatabase are not checked against it.
	FlagReadOnly
	// FlagDisableMmap forces pread/pwrite even if the device could map.
	FlagDisableMmap
	// FlagCacheUnlimited sets the cache capacity to unbounded.
	FlagCacheUnlimited
	// FlagEnableFsync is not consulted: FileDevice.Flush fsyncs on every
	// flush whether or not it is set, and MemDevice.Flush is a no-op.
	FlagEnableFsync
	// FlagEnableCrc32 is accepted but not consulted; no per-page CRC32 is
	// computed on write or verified on read.
	FlagEnableCrc32
	// FlagEnableRecovery is accepted but not consulted; no journal
	// collaborator is required or checked for (journaling is out of core
	// scope).
	FlagEnableRecovery
	// FlagForceRecordsInline makes a database with a fixed RecordSize
	// above 8 bytes use InlineRecord instead of PodRecord (both keep the
	// record in the node). A database with RecordSize 0 uses DefaultRecord
	// whether or not this flag is set, so its records longer than 8 bytes
	// still spill to blobs.
	FlagForceRecordsInline
	// FlagEnableDuplicateKeys allows more than one record per key.
	FlagEnableDuplicateKeys
)

// Has reports whether all bits of want are set in f.
func (f EnvironmentFlags) Has(want EnvironmentFlags) bool { return f&want == want }

// KeyType identifies the comparator and KeyList variant a database uses.
type KeyType uint32

const (
	KeyTypeUint8 KeyType = iota
	KeyTypeUint16
	KeyTypeUint32
	KeyTypeUint64
	KeyTypeReal32
	KeyTypeReal64
	KeyTypeBinary
	KeyTypeCustom
)

// Compressor identifies a key or record payload compressor.
// Only None/Snappy/Zlib are implemented; the rest are accepted as
// configuration values and rejected at open time with KindNotImplemented
// (see codec/compress.go) rather than silently falling back, so a caller
// requesting on-disk compatibility with an unimplemented codec fails loud.
type Compressor uint8

const (
	CompressorNone Compressor = iota
	CompressorZlib
	CompressorSnappy
	CompressorLzf
	CompressorLzo
	CompressorVarbyte
	CompressorGroupVarint
	CompressorStreamVbyte
	CompressorFor
	CompressorSimdComp
	CompressorSimdFor
)

// EnvironmentConfig configures an Environment at Create/Open time.
type EnvironmentConfig struct {
	Path string
	// PageSize must be 1024 or a multiple of 2048; zero defaults to 4096.
	PageSize uint32
	// MaxDatabases bounds the per-database slot table in the file header.
	MaxDatabases uint16
	Flags        EnvironmentFlags
	// CacheCapacityBytes bounds the page cache; ignored if
	// Flags.Has(FlagCacheUnlimited).
	CacheCapacityBytes uint64
}

func (c EnvironmentConfig) pageSizeOrDefault() uint32 {
	if c.PageSize == 0 {
		return 4096
	}
	return c.PageSize
}

// DatabaseConfig configures one named database inside an Environment.
type DatabaseConfig struct {
	Name              string
	KeyType           KeyType
	KeySize           uint32 // 0 = variable-length keys
	RecordSize        uint32 // 0 = unlimited (spills to blob past 8 bytes)
	KeyCompressor     Compressor
	RecordCompressor  Compressor
	DuplicateThreshold   uint32 // 0 = derive from page size
	ExtendedKeyThreshold uint32 // 0 = derive from page size
	AllowDuplicates   bool
}

// extendedKeyThresholdFor returns the configured or derived
// threshold above which a variable-length key spills to a blob.
func (c DatabaseConfig) extendedKeyThresholdFor(pageSize uint32) uint32 {
	if c.ExtendedKeyThreshold != 0 {
		return c.ExtendedKeyThreshold
	}
	switch {
	case pageSize <= 1024:
		return 64
	case pageSize <= 8192:
		return 128
	default:
		return 250
	}
}

// duplicateThresholdFor returns the configured or derived
// inline-duplicate-run limit before conversion to an external
// DuplicateTable.
func (c DatabaseConfig) duplicateThresholdFor(pageSize uint32) uint32 {
	if c.DuplicateThreshold != 0 {
		return c.DuplicateThreshold
	}
	switch {
	case pageSize <= 1024:
		return 8
	case pageSize <= 8192:
		return 32
	default:
		return 64
	}
}
