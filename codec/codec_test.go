package codec

import (
	"reflect"
	"testing"
)

func TestBlockCodecs_RoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		values []uint32
	}{
		{"empty", nil},
		{"single", []uint32{42}},
		{"small_ascending", []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"large_values", []uint32{1000000, 2000000, 4000000000}},
		{"mixed", []uint32{0, 1, 300, 70000, 16777216, 4294967295}},
	}

	for _, codec := range []BlockCodec{Varbyte{}, GroupVarint{}, FOR{}} {
		codec := codec
		t.Run(codec.Name(), func(t *testing.T) {
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					packed := codec.CompressBlock(nil, tc.values)
					got := make([]uint32, len(tc.values))
					consumed, err := codec.DecompressBlock(got, packed, len(tc.values))
					if err != nil {
						t.Fatalf("DecompressBlock() err = %v", err)
					}
					if consumed != len(packed) {
						t.Fatalf("DecompressBlock() consumed = %d, want %d", consumed, len(packed))
					}
					if !reflect.DeepEqual(got, tc.values) && !(len(got) == 0 && len(tc.values) == 0) {
						t.Fatalf("DecompressBlock() = %v, want %v", got, tc.values)
					}
				})
			}
		})
	}
}

func TestLookup_SimdAliasesResolveToScalar(t *testing.T) {
	simd, err := Lookup("simdcomp")
	if err != nil {
		t.Fatalf("Lookup() err = %v", err)
	}
	scalar, _ := Lookup("varbyte")
	if simd.Name() != scalar.Name() {
		t.Fatalf("Lookup(simdcomp).Name() = %q, want %q", simd.Name(), scalar.Name())
	}
}

func TestLookup_UnknownCodec(t *testing.T) {
	if _, err := Lookup("nonexistent"); err == nil {
		t.Fatalf("Lookup() err = nil, want error for unknown codec")
	}
}

func TestCompressors_RoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")

	for _, c := range []Compressor{None{}, Snappy{}, Zlib{}} {
		c := c
		t.Run(c.Name(), func(t *testing.T) {
			packed := c.Compress(nil, payload)
			got, err := c.Decompress(nil, packed)
			if err != nil {
				t.Fatalf("Decompress() err = %v", err)
			}
			if string(got) != string(payload) {
				t.Fatalf("Decompress() = %q, want %q", got, payload)
			}
		})
	}
}

func TestLookupCompressor(t *testing.T) {
	if _, err := LookupCompressor("unknown"); err == nil {
		t.Fatalf("LookupCompressor() err = nil, want error")
	}
	c, err := LookupCompressor("")
	if err != nil {
		t.Fatalf("LookupCompressor() err = %v", err)
	}
	if c.Name() != "none" {
		t.Fatalf("LookupCompressor(\"\").Name() = %q, want none", c.Name())
	}
}
