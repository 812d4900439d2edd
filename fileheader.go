package bltree

import "github.com/latticedb/bltree/errkit"

// fileHeader is the page-0 layout: magic/version/page_size/
// max_databases/flags/encryption_iv followed by the per-database slot
// table. It is encoded/decoded as one flat byte region sized to fit in
// page 0's body (page.HeaderSize bytes of the physical page are the
// generic per-page header; fileHeader occupies everything after that,
// same as a btree node body).
type fileHeader struct {
	magic        [4]byte
	versionMajor byte
	versionMinor byte
	versionRev   byte
	versionRsvd  byte
	pageSize     uint32
	maxDatabases uint16
	flags        EnvironmentFlags
	encryptionIV [16]byte

	// freelistRoot/pageManagerRoot address the head of the persisted
	// freelist/page-manager linked-list chains; -1 means no chain has
	// been written yet.
	freelistRoot    int64
	pageManagerRoot int64

	slots []databaseSlot
}

// databaseSlot is one entry of the per-database slot table.
// name is stored in a fixed-width buffer rather than a separately
// allocated region: max_databases is small and known up front, so a flat
// array of fixed-size slots avoids a second indirection for what is
// effectively static environment metadata.
type databaseSlot struct {
	inUse            bool
	name             string // truncated to slotNameSize-1 bytes on encode
	flags            uint32
	keyType          KeyType
	keySize          uint32
	recordSize       uint32
	rootPage         int64
	keyCompression   Compressor
	recordCompression Compressor
}

const (
	fileHeaderMagic = "BLT1"

	slotNameSize = 32
	// slotSize: name_len(2) + name(slotNameSize) + flags(4) + key_type(4)
	// + key_size(4) + record_size(4) + root_page(8) + key_compression(1)
	// + record_compression(1) + in_use(1)
	slotSize = 2 + slotNameSize + 4 + 4 + 4 + 4 + 8 + 1 + 1 + 1

	fixedHeaderSize = 4 + 4 + 4 + 2 + 4 + 16 + 8 + 8 // magic..pageManagerRoot
)

func newFileHeader(cfg EnvironmentConfig) *fileHeader {
	maxDB := cfg.MaxDatabases
	if maxDB == 0 {
		maxDB = 16
	}
	h := &fileHeader{
		versionMajor:    1,
		pageSize:        cfg.pageSizeOrDefault(),
		maxDatabases:    maxDB,
		flags:           cfg.Flags,
		freelistRoot:    -1,
		pageManagerRoot: -1,
		slots:           make([]databaseSlot, maxDB),
	}
	copy(h.magic[:], fileHeaderMagic)
	return h
}

func (h *fileHeader) encodedSize() int {
	return fixedHeaderSize + len(h.slots)*slotSize
}

func (h *fileHeader) encode() []byte {
	buf := make([]byte, h.encodedSize())
	off := 0
	copy(buf[off:off+4], h.magic[:])
	off += 4
	buf[off] = h.versionMajor
	buf[off+1] = h.versionMinor
	buf[off+2] = h.versionRev
	buf[off+3] = h.versionRsvd
	off += 4
	putU32(buf[off:], h.pageSize)
	off += 4
	putU16(buf[off:], h.maxDatabases)
	off += 2
	putU32(buf[off:], uint32(h.flags))
	off += 4
	copy(buf[off:off+16], h.encryptionIV[:])
	off += 16
	putI64(buf[off:], h.freelistRoot)
	off += 8
	putI64(buf[off:], h.pageManagerRoot)
	off += 8

	for _, s := range h.slots {
		encodeSlot(buf[off:off+slotSize], s)
		off += slotSize
	}
	return buf
}

func decodeFileHeader(buf []byte) (*fileHeader, error) {
	if len(buf) < fixedHeaderSize {
		return nil, errkit.NewError(errkit.KindInvFileHeader, "bltree: file header too short")
	}
	h := &fileHeader{}
	off := 0
	copy(h.magic[:], buf[off:off+4])
	off += 4
	if string(h.magic[:]) != fileHeaderMagic {
		return nil, errkit.NewError(errkit.KindInvFileHeader, "bltree: bad magic")
	}
	h.versionMajor, h.versionMinor, h.versionRev, h.versionRsvd = buf[off], buf[off+1], buf[off+2], buf[off+3]
	off += 4
	if h.versionMajor != 1 {
		return nil, errkit.NewError(errkit.KindInvFileVersion, "bltree: unsupported file version")
	}
	h.pageSize = getU32(buf[off:])
	off += 4
	h.maxDatabases = getU16(buf[off:])
	off += 2
	h.flags = EnvironmentFlags(getU32(buf[off:]))
	off += 4
	copy(h.encryptionIV[:], buf[off:off+16])
	off += 16
	h.freelistRoot = getI64(buf[off:])
	off += 8
	h.pageManagerRoot = getI64(buf[off:])
	off += 8

	need := off + int(h.maxDatabases)*slotSize
	if len(buf) < need {
		return nil, errkit.NewError(errkit.KindInvFileHeader, "bltree: file header truncated slot table")
	}
	h.slots = make([]databaseSlot, h.maxDatabases)
	for i := range h.slots {
		h.slots[i] = decodeSlot(buf[off : off+slotSize])
		off += slotSize
	}
	return h, nil
}

func encodeSlot(buf []byte, s databaseSlot) {
	name := s.name
	if len(name) > slotNameSize-1 {
		name = name[:slotNameSize-1]
	}
	putU16(buf[0:], uint16(len(name)))
	copy(buf[2:2+slotNameSize], name)
	off := 2 + slotNameSize
	putU32(buf[off:], s.flags)
	off += 4
	putU32(buf[off:], uint32(s.keyType))
	off += 4
	putU32(buf[off:], s.keySize)
	off += 4
	putU32(buf[off:], s.recordSize)
	off += 4
	putI64(buf[off:], s.rootPage)
	off += 8
	buf[off] = byte(s.keyCompression)
	off++
	buf[off] = byte(s.recordCompression)
	off++
	if s.inUse {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
}

func decodeSlot(buf []byte) databaseSlot {
	nameLen := int(getU16(buf[0:]))
	name := string(buf[2 : 2+nameLen])
	off := 2 + slotNameSize
	flags := getU32(buf[off:])
	off += 4
	keyType := KeyType(getU32(buf[off:]))
	off += 4
	keySize := getU32(buf[off:])
	off += 4
	recordSize := getU32(buf[off:])
	off += 4
	rootPage := getI64(buf[off:])
	off += 8
	keyCompression := Compressor(buf[off])
	off++
	recordCompression := Compressor(buf[off])
	off++
	inUse := buf[off] != 0
	return databaseSlot{
		inUse:             inUse,
		name:              name,
		flags:             flags,
		keyType:           keyType,
		keySize:           keySize,
		recordSize:        recordSize,
		rootPage:          rootPage,
		keyCompression:    keyCompression,
		recordCompression: recordCompression,
	}
}

func putU16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func getU16(b []byte) uint16    { return uint16(b[0]) | uint16(b[1])<<8 }

func putU32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
func getU32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}

func putI64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}
func getI64(b []byte) int64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return int64(v)
}
