package recordlist

// fixedArray is the shared implementation behind InlineRecord, PodRecord
// and InternalRecord — slot i lives at region[i*width : (i+1)*width].
type fixedArray struct {
	region []byte
	width  int
	count  int
}

func newFixedArray(region []byte, width, count int) *fixedArray {
	return &fixedArray{region: region, width: width, count: count}
}

func (a *fixedArray) Count() int { return a.count }

func (a *fixedArray) Record(i int) ([]byte, error) {
	return a.region[i*a.width : (i+1)*a.width], nil
}

func (a *fixedArray) SetRecord(i int, rec []byte) error {
	copy(a.region[i*a.width:(i+1)*a.width], rec)
	return nil
}

func (a *fixedArray) Insert(i int, rec []byte) error {
	if a.RequiresSplit(len(rec)) {
		return errLimitsReached
	}
	start := i * a.width
	end := (a.count + 1) * a.width
	copy(a.region[start+a.width:end], a.region[start:end-a.width])
	copy(a.region[start:start+a.width], rec)
	a.count++
	return nil
}

func (a *fixedArray) Erase(i int) error {
	start := i * a.width
	end := a.count * a.width
	copy(a.region[start:end-a.width], a.region[start+a.width:end])
	a.count--
	return nil
}

func (a *fixedArray) RequiresSplit(int) bool {
	return (a.count+1)*a.width > len(a.region)
}

func (a *fixedArray) RequiredRangeSize(n int) int { return n * a.width }

// InlineRecord stores fixed-size records in place.
type InlineRecord struct{ *fixedArray }

// NewInlineRecord wraps region as count live, fixedSize-byte records.
func NewInlineRecord(region []byte, fixedSize, count int) *InlineRecord {
	return &InlineRecord{fixedArray: newFixedArray(region, fixedSize, count)}
}

// PodRecord stores an array of fixed-width scalar records (the numeric
// interpretation is the database's concern, as with keylist.POD).
type PodRecord struct{ *fixedArray }

// NewPodRecord wraps region as count live, width-byte scalar records.
func NewPodRecord(region []byte, width, count int) *PodRecord {
	return &PodRecord{fixedArray: newFixedArray(region, width, count)}
}

// InternalRecord stores one 64-bit child page id per slot (;
// an internal node has one more child than keys, represented by the
// node layer keeping an extra slot — see node.Node's ptr_down field for
// the rightmost child).
type InternalRecord struct{ *fixedArray }

// NewInternalRecord wraps region as count live, 8-byte child page ids.
func NewInternalRecord(region []byte, count int) *InternalRecord {
	return &InternalRecord{fixedArray: newFixedArray(region, 8, count)}
}

// ChildAt returns the child page id stored at slot i.
func (r *InternalRecord) ChildAt(i int) uint64 {
	b, _ := r.Record(i)
	return getU64(b)
}

// SetChildAt overwrites slot i's child page id.
func (r *InternalRecord) SetChildAt(i int, pageID uint64) {
	b := make([]byte, 8)
	putU64(b, pageID)
	_ = r.SetRecord(i, b)
}

// InsertChild inserts pageID as a new child at slot i.
func (r *InternalRecord) InsertChild(i int, pageID uint64) error {
	b := make([]byte, 8)
	putU64(b, pageID)
	return r.Insert(i, b)
}
