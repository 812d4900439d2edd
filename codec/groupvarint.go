package codec

import "github.com/latticedb/bltree/errkit"

// GroupVarint packs four values at a time: one selector byte (2 bits per
// value encoding its byte-width 1-4) followed by the four values' bytes
// back to back, little-endian, no continuation bits. A trailing partial
// group of 1-3 values is packed the same way, short. Mandated alongside
// Varbyte as an always-available scalar codec.
type GroupVarint struct{}

func (GroupVarint) Name() string { return "groupvarint" }

func widthOf(v uint32) byte {
	switch {
	case v < 1<<8:
		return 1
	case v < 1<<16:
		return 2
	case v < 1<<24:
		return 3
	default:
		return 4
	}
}

func (GroupVarint) CompressBlock(dst []byte, values []uint32) []byte {
	for i := 0; i < len(values); i += 4 {
		group := values[i:min(i+4, len(values))]
		var selector byte
		for j, v := range group {
			w := widthOf(v)
			selector |= (w - 1) << (uint(j) * 2)
		}
		dst = append(dst, selector)
		for _, v := range group {
			w := widthOf(v)
			for b := byte(0); b < w; b++ {
				dst = append(dst, byte(v>>(8*b)))
			}
		}
	}
	return dst
}

func (GroupVarint) DecompressBlock(dst []uint32, src []byte, n int) (int, error) {
	pos := 0
	for i := 0; i < n; i += 4 {
		if pos >= len(src) {
			return 0, errkit.NewError(errkit.KindIntegrityViolated, "codec: groupvarint block truncated")
		}
		selector := src[pos]
		pos++
		count := min(4, n-i)
		for j := 0; j < count; j++ {
			w := int(((selector >> (uint(j) * 2)) & 0x3) + 1)
			if pos+w > len(src) {
				return 0, errkit.NewError(errkit.KindIntegrityViolated, "codec: groupvarint block truncated")
			}
			var v uint32
			for b := 0; b < w; b++ {
				v |= uint32(src[pos+b]) << (8 * b)
			}
			dst[i+j] = v
			pos += w
		}
	}
	return pos, nil
}

func (GroupVarint) EstimateRequiredSize(maxValue uint32, n int) int {
	w := int(widthOf(maxValue))
	groups := (n + 3) / 4
	return groups + w*n
}
