package codec

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/golang/snappy"

	"github.com/latticedb/bltree/errkit"
)

// Compressor is the payload compressor contract behind a database's
// KeyCompressor (applied by keylist.Variable to keys stored inline in
// the node) and RecordCompressor (applied by the blob.Manager that holds
// the database's blob-spilled records).
type Compressor interface {
	Name() string
	Compress(dst, src []byte) []byte
	Decompress(dst, src []byte) ([]byte, error)
}

// None is the identity compressor — the default for both KeyCompressor
// and RecordCompressor.
type None struct{}

func (None) Name() string                               { return "none" }
func (None) Compress(dst, src []byte) []byte             { return append(dst, src...) }
func (None) Decompress(dst, src []byte) ([]byte, error) { return append(dst, src...), nil }

// Snappy wraps github.com/golang/snappy for block payload compression.
type Snappy struct{}

func (Snappy) Name() string { return "snappy" }

func (Snappy) Compress(dst, src []byte) []byte {
	return snappy.Encode(nil, src) // snappy owns dst sizing via MaxEncodedLen internally
}

func (Snappy) Decompress(dst, src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, errkit.Wrap(errkit.KindIntegrityViolated, "codec: snappy decode failed", err)
	}
	return append(dst, out...), nil
}

// Zlib wraps the standard library's compress/zlib. No ecosystem zlib
// wrapper appears anywhere in the retrieved pack, so this is the one
// stdlib-only compressor (see DESIGN.md).
type Zlib struct{}

func (Zlib) Name() string { return "zlib" }

func (Zlib) Compress(dst, src []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(src)
	_ = w.Close()
	return append(dst, buf.Bytes()...)
}

func (Zlib) Decompress(dst, src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, errkit.Wrap(errkit.KindIntegrityViolated, "codec: zlib header invalid", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errkit.Wrap(errkit.KindIntegrityViolated, "codec: zlib decode failed", err)
	}
	return append(dst, out...), nil
}

// LookupCompressor resolves a payload compressor by on-disk name.
func LookupCompressor(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return None{}, nil
	case "snappy":
		return Snappy{}, nil
	case "zlib":
		return Zlib{}, nil
	default:
		return nil, errkit.NewError(errkit.KindNotImplemented, "codec: unknown compressor "+name)
	}
}
