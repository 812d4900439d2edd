package keylist

// Binary is the fixed-size byte-array KeyList. Structurally identical to
// POD — both are just width-keyed arrays — kept as a distinct named type
// because the database config distinguishes KeyType Binary from the
// numeric POD types, and node/ dispatches on that type tag.
type Binary struct {
	*POD
}

// NewBinary wraps region as a Binary KeyList of count live,
// fixedSize-byte keys.
func NewBinary(region []byte, fixedSize, count int) *Binary {
	return &Binary{POD: NewPOD(region, fixedSize, count)}
}
