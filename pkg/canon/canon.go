// Package canon implements the canonical little-endian, length-prefixed wire
// encoding shared by every structure that commits to a hash: epoch
// commitments and block hashes are both built by feeding an Encoder into
// pkg/ghash's streaming Builder. The scheme is deliberately bespoke (see
// DESIGN.md for why neither RLP nor SSZ is reused) and simple: a version
// byte, then fields in declaration order, slices as a u32-LE length followed
// by elements, and optional values as a tag byte (0 absent, 1 present)
// followed by the payload when present.
package canon

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
)

// VersionZero is the only structure version currently defined. Every
// top-level encoded structure starts with this byte so that future formats
// can be introduced without breaking existing decoders.
const VersionZero = byte(0)

var (
	// ErrTruncated is returned when the input ends before a field can be
	// fully read.
	ErrTruncated = errors.New("canon: truncated input")
	// ErrBadVersion is returned when a structure's leading version byte is
	// not one this package understands.
	ErrBadVersion = errors.New("canon: unsupported version")
	// ErrBadOption is returned when an Option tag byte is neither 0 nor 1.
	ErrBadOption = errors.New("canon: bad option tag")
	// ErrTooLarge is returned when a u128 value does not fit in 16 bytes.
	ErrTooLarge = errors.New("canon: value exceeds 128 bits")
	// ErrTrailingBytes is returned by callers that require a Decoder to be
	// fully consumed and find bytes remaining.
	ErrTrailingBytes = errors.New("canon: trailing bytes after decode")
)

// Encoder accumulates the canonical byte representation of a structure.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// Version writes the structure version byte.
func (e *Encoder) Version(v byte) { e.buf = append(e.buf, v) }

// Byte writes a single raw byte.
func (e *Encoder) Byte(b byte) { e.buf = append(e.buf, b) }

// Raw writes a raw fixed-width byte slice without a length prefix; used
// for fields whose width is implied by the type (hashes, pubkeys,
// signatures).
func (e *Encoder) Raw(b []byte) { e.buf = append(e.buf, b...) }

// U16 writes a u16 field, little-endian.
func (e *Encoder) U16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// U32 writes a u32 field, little-endian.
func (e *Encoder) U32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// U64 writes a u64 field, little-endian.
func (e *Encoder) U64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// U128 writes a u128 field (stake values) as 16 bytes, little-endian. It
// panics if v does not fit in 128 bits -- callers are expected to validate
// stake magnitudes at construction, not at encode time.
func (e *Encoder) U128(v *uint256.Int) {
	if v.BitLen() > 128 {
		panic(ErrTooLarge)
	}
	var tmp [16]byte
	b := v.Bytes32()
	// uint256.Bytes32 is big-endian; take the low 16 bytes and reverse them.
	for i := 0; i < 16; i++ {
		tmp[i] = b[31-i]
	}
	e.buf = append(e.buf, tmp[:]...)
}

// VarBytes writes a variable-length byte slice as a u32-LE length prefix
// followed by the bytes.
func (e *Encoder) VarBytes(b []byte) {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// SliceLen writes the u32-LE length prefix for a slice field; the caller
// then encodes each element in turn.
func (e *Encoder) SliceLen(n int) { e.U32(uint32(n)) }

// OptionTag writes the Option<T> tag byte: 1 if present, 0 if absent. The
// caller is responsible for encoding the payload immediately afterward when
// present is true.
func (e *Encoder) OptionTag(present bool) {
	if present {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// Decoder reads fields out of a canonical encoding in the same order an
// Encoder wrote them.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps b for sequential field reads. b is not copied; callers
// must not mutate it while the Decoder is in use.
func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

// Remaining reports how many bytes have not yet been consumed.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

// Done fails with ErrTrailingBytes if the Decoder has not consumed its
// entire input; callers that expect an exact-length structure call this
// after all fields have been read.
func (d *Decoder) Done() error {
	if d.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, ErrTruncated
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Version reads and validates the structure version byte against
// VersionZero.
func (d *Decoder) Version() error {
	b, err := d.take(1)
	if err != nil {
		return err
	}
	if b[0] != VersionZero {
		return ErrBadVersion
	}
	return nil
}

// Byte reads a single raw byte.
func (d *Decoder) Byte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Raw reads n raw bytes and returns a copy.
func (d *Decoder) Raw(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// U16 reads a little-endian u16 field.
func (d *Decoder) U16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a little-endian u32 field.
func (d *Decoder) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian u64 field.
func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// U128 reads a 16-byte little-endian u128 field into a uint256.Int.
func (d *Decoder) U128() (*uint256.Int, error) {
	b, err := d.take(16)
	if err != nil {
		return nil, err
	}
	var be [32]byte
	for i := 0; i < 16; i++ {
		be[31-i] = b[i]
	}
	return new(uint256.Int).SetBytes32(be[:]), nil
}

// VarBytes reads a u32-LE length prefix followed by that many bytes.
func (d *Decoder) VarBytes() ([]byte, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	return d.Raw(int(n))
}

// SliceLen reads a u32-LE slice length prefix.
func (d *Decoder) SliceLen() (uint32, error) { return d.U32() }

// OptionTag reads an Option<T> tag byte and reports whether the payload is
// present.
func (d *Decoder) OptionTag() (bool, error) {
	b, err := d.Byte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrBadOption
	}
}
