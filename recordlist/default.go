package recordlist

import "github.com/latticedb/bltree/errkit"

const (
	defFlagEmpty byte = 0
	defFlagTiny  byte = 1
	defFlagSmall byte = 2
	defFlagBlob  byte = 3

	defSlotSize = 9 // 1-byte flag + 8-byte cell
)

// BlobStore is the minimal blob-manager contract DefaultRecord needs,
// matching keylist.BlobStore in shape (both front blob.Manager).
type BlobStore interface {
	Allocate(data []byte) (uint64, error)
	Overwrite(id uint64, data []byte) (uint64, error)
	Read(id uint64) ([]byte, error)
	Erase(id uint64) error
}

// DefaultRecord stores, per slot, either up to 8 inline bytes or a blob
// id. Rather than folding the kind/length tag into the high byte of the
// inline/blob-id cell, this implementation always keeps the flag as a
// separate byte (9 bytes/slot) — a deliberate simplification recorded in
// DESIGN.md; the kind/length encoding below is otherwise equivalent.
type DefaultRecord struct {
	region []byte
	count  int
	blobs  BlobStore
}

// NewDefaultRecord wraps region as count live DefaultRecord slots.
func NewDefaultRecord(region []byte, count int, blobs BlobStore) *DefaultRecord {
	return &DefaultRecord{region: region, count: count, blobs: blobs}
}

func (d *DefaultRecord) Count() int { return d.count }

func (d *DefaultRecord) slot(i int) []byte {
	return d.region[i*defSlotSize : (i+1)*defSlotSize]
}

func (d *DefaultRecord) Record(i int) ([]byte, error) {
	return decodeDefaultCell(d.slot(i), d.blobs)
}

func (d *DefaultRecord) encode(dst []byte, rec []byte) error {
	return encodeDefaultCell(dst, rec, d.blobs)
}

// decodeDefaultCell decodes one defSlotSize-byte flag+cell pair. Shared
// with Duplicate's default-shaped inline entries.
func decodeDefaultCell(s []byte, blobs BlobStore) ([]byte, error) {
	flag := s[0]
	cell := s[1:]
	switch flag & 0x3 {
	case defFlagEmpty:
		return nil, nil
	case defFlagTiny:
		length := int(flag >> 2)
		return append([]byte(nil), cell[:length]...), nil
	case defFlagSmall:
		return append([]byte(nil), cell...), nil
	case defFlagBlob:
		return blobs.Read(getU64(cell))
	default:
		return nil, errkit.NewError(errkit.KindIntegrityViolated, "recordlist: invalid DefaultRecord flag")
	}
}

// encodeDefaultCell encodes rec into dst (a defSlotSize-byte flag+cell
// pair), spilling to a blob when rec exceeds 8 bytes.
func encodeDefaultCell(dst []byte, rec []byte, blobs BlobStore) error {
	switch {
	case len(rec) == 0:
		dst[0] = defFlagEmpty
	case len(rec) <= 7:
		dst[0] = defFlagTiny | byte(len(rec))<<2
		copy(dst[1:], rec)
	case len(rec) == 8:
		dst[0] = defFlagSmall
		copy(dst[1:], rec)
	default:
		id, err := blobs.Allocate(rec)
		if err != nil {
			return err
		}
		dst[0] = defFlagBlob
		putU64(dst[1:], id)
	}
	return nil
}

// SetRecord overwrites slot i, releasing any existing blob that the new
// value no longer needs and reusing/reallocating one it does.
func (d *DefaultRecord) SetRecord(i int, rec []byte) error {
	s := d.slot(i)
	oldFlag := s[0]
	if oldFlag&0x3 == defFlagBlob {
		oldID := getU64(s[1:])
		if len(rec) > 8 {
			newID, err := d.blobs.Overwrite(oldID, rec)
			if err != nil {
				return err
			}
			s[0] = defFlagBlob
			putU64(s[1:], newID)
			return nil
		}
		if err := d.blobs.Erase(oldID); err != nil {
			return err
		}
	}
	return d.encode(s, rec)
}

func (d *DefaultRecord) Insert(i int, rec []byte) error {
	if d.RequiresSplit(len(rec)) {
		return errLimitsReached
	}
	start := i * defSlotSize
	end := (d.count + 1) * defSlotSize
	copy(d.region[start+defSlotSize:end], d.region[start:end-defSlotSize])
	d.count++
	return d.encode(d.slot(i), rec)
}

func (d *DefaultRecord) Erase(i int) error {
	s := d.slot(i)
	if s[0]&0x3 == defFlagBlob {
		if err := d.blobs.Erase(getU64(s[1:])); err != nil {
			return err
		}
	}
	start := i * defSlotSize
	end := d.count * defSlotSize
	copy(d.region[start:end-defSlotSize], d.region[start+defSlotSize:end])
	d.count--
	return nil
}

func (d *DefaultRecord) RequiresSplit(int) bool {
	return (d.count+1)*defSlotSize > len(d.region)
}

func (d *DefaultRecord) RequiredRangeSize(n int) int { return n * defSlotSize }
