package codec

import "github.com/latticedb/bltree/errkit"

// FOR (Frame-Of-Reference) bit-packs a block against its own minimum: it
// stores that minimum as a 4-byte base, a 1-byte bit-width, then ceil(n*
// bits/8) packed bytes holding (value-base) for every value. Values here
// already arrive delta-from-base relative to the block's key-list base
//, so FOR's own base subtraction is a second,
// block-local pass that tightens the bit-width further.
type FOR struct{}

func (FOR) Name() string { return "for" }

func bitsNeeded(v uint32) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

func (FOR) CompressBlock(dst []byte, values []uint32) []byte {
	if len(values) == 0 {
		var base [4]byte
		dst = append(dst, base[:]...)
		return append(dst, 0)
	}
	base := values[0]
	for _, v := range values {
		if v < base {
			base = v
		}
	}
	maxDelta := uint32(0)
	for _, v := range values {
		if d := v - base; d > maxDelta {
			maxDelta = d
		}
	}
	bits := bitsNeeded(maxDelta)

	dst = append(dst, byte(base), byte(base>>8), byte(base>>16), byte(base>>24))
	dst = append(dst, byte(bits))

	packed := make([]byte, (len(values)*bits+7)/8)
	bitPos := 0
	for _, v := range values {
		d := v - base
		for b := 0; b < bits; b++ {
			if d&(1<<uint(b)) != 0 {
				packed[bitPos/8] |= 1 << uint(bitPos%8)
			}
			bitPos++
		}
	}
	return append(dst, packed...)
}

func (FOR) DecompressBlock(dst []uint32, src []byte, n int) (int, error) {
	if len(src) < 5 {
		return 0, errkit.NewError(errkit.KindIntegrityViolated, "codec: for block truncated header")
	}
	base := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
	bits := int(src[4])
	pos := 5

	if n == 0 {
		return pos, nil
	}
	packedLen := (n*bits + 7) / 8
	if pos+packedLen > len(src) {
		return 0, errkit.NewError(errkit.KindIntegrityViolated, "codec: for block truncated payload")
	}
	packed := src[pos : pos+packedLen]
	bitPos := 0
	for i := 0; i < n; i++ {
		var d uint32
		for b := 0; b < bits; b++ {
			if packed[bitPos/8]&(1<<uint(bitPos%8)) != 0 {
				d |= 1 << uint(b)
			}
			bitPos++
		}
		dst[i] = base + d
	}
	return pos + packedLen, nil
}

func (FOR) EstimateRequiredSize(maxValue uint32, n int) int {
	bits := bitsNeeded(maxValue)
	return 5 + (n*bits+7)/8
}
