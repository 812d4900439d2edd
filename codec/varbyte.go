package codec

import "github.com/latticedb/bltree/errkit"

// Varbyte is the classic variable-byte (LEB128-style) integer codec: each
// value is packed into 1-5 bytes, 7 bits per byte, continuation bit set
// on every byte but the last. One of the two scalar codecs always
// available regardless of which block codec a database configures,
// alongside GroupVarint.
type Varbyte struct{}

func (Varbyte) Name() string { return "varbyte" }

func (Varbyte) CompressBlock(dst []byte, values []uint32) []byte {
	for _, v := range values {
		for v >= 0x80 {
			dst = append(dst, byte(v)|0x80)
			v >>= 7
		}
		dst = append(dst, byte(v))
	}
	return dst
}

func (Varbyte) DecompressBlock(dst []uint32, src []byte, n int) (int, error) {
	pos := 0
	for i := 0; i < n; i++ {
		var v uint32
		shift := uint(0)
		for {
			if pos >= len(src) {
				return 0, errkit.NewError(errkit.KindIntegrityViolated, "codec: varbyte block truncated")
			}
			b := src[pos]
			pos++
			v |= uint32(b&0x7f) << shift
			if b&0x80 == 0 {
				break
			}
			shift += 7
		}
		dst[i] = v
	}
	return pos, nil
}

func (Varbyte) EstimateRequiredSize(maxValue uint32, n int) int {
	width := 1
	for v := maxValue; v >= 0x80; v >>= 7 {
		width++
	}
	return width * n
}
