package keylist

// POD is the fixed-width array KeyList ("POD<T>"): slot i
// lives at region[i*width : (i+1)*width]. Used for KeyType Uint8..Uint64,
// Real32, Real64 — the numeric interpretation (and hence the comparator)
// is the database's concern, not this type's; POD only knows the width.
type POD struct {
	region []byte
	width  int
	count  int
}

// NewPOD wraps region as a POD KeyList of count live, width-byte keys.
func NewPOD(region []byte, width, count int) *POD {
	return &POD{region: region, width: width, count: count}
}

func (p *POD) Count() int { return p.count }

func (p *POD) Key(i int) ([]byte, error) {
	return p.region[i*p.width : (i+1)*p.width], nil
}

func (p *POD) FindLowerBound(cmp Comparator, key []byte) (int, CompareResult, error) {
	lo, hi := 0, p.count
	for lo < hi {
		mid := (lo + hi) / 2
		k, _ := p.Key(mid)
		switch cmp(key, k) {
		case Less:
			hi = mid
		case Greater:
			lo = mid + 1
		default:
			return mid, Equal, nil
		}
	}
	return lo, Less, nil
}

func (p *POD) Insert(i int, key []byte) error {
	if p.RequiresSplit(len(key)) {
		return errLimitsReached
	}
	start := i * p.width
	end := (p.count + 1) * p.width
	copy(p.region[start+p.width:end], p.region[start:end-p.width])
	copy(p.region[start:start+p.width], key)
	p.count++
	return nil
}

func (p *POD) Erase(i int) error {
	start := i * p.width
	end := p.count * p.width
	copy(p.region[start:end-p.width], p.region[start+p.width:end])
	p.count--
	return nil
}

func (p *POD) RequiresSplit(int) bool {
	return (p.count+1)*p.width > len(p.region)
}

func (p *POD) RequiredRangeSize(n int) int { return n * p.width }
