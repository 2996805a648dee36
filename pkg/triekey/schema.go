// Package triekey builds the fixed-width trie keys used to address
// IBC-style objects (client/consensus states, connections, channels,
// packet commitments) inside pkg/trie. Unlike pkg/canon's little-endian,
// length-prefixed wire format, every integer here is encoded big-endian so
// that lexicographic byte order matches numeric order -- consecutive
// sequence numbers land on adjacent trie keys.
package triekey

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
)

// Tag is the one-byte discriminant every key starts with, namespacing the
// different kinds of objects the trie stores.
type Tag byte

const (
	TagClientState    Tag = 0
	TagConsensusState Tag = 1
	TagConnection     Tag = 2
	TagChannelEnd     Tag = 3
	TagNextSequence   Tag = 4
	TagCommitment     Tag = 5
	TagReceipt        Tag = 6
	TagAck            Tag = 7
)

// PortKeySize is the packed width of a port identifier.
const PortKeySize = 9

// portKeyB64Len is the base64 width of a 9-byte buffer with no padding
// characters (9 bytes -> 12 base64 characters, evenly -- no '=' padding).
const portKeyB64Len = 12

var (
	// ErrPortIDTooLong is returned when a port identifier exceeds 12
	// characters, the widest identifier that packs into 9 bytes of base64.
	ErrPortIDTooLong = errors.New("triekey: port id exceeds 12 characters")
	// ErrPortIDBadChar is returned when a port identifier contains a '+' or
	// '/' character, which would be ambiguous once treated as base64, or any
	// other character outside the base64 alphabet.
	ErrPortIDBadChar = errors.New("triekey: port id contains a reserved base64 character")
)

// PortKey is a 9-byte packing of a short, alphanumeric IBC port
// identifier: the identifier is padded to 12 characters with '/' (itself a
// valid but reserved base64 character, which is why port IDs may not
// contain one) and base64-decoded into 9 bytes.
type PortKey [PortKeySize]byte

// NewPortKey packs portID into a PortKey. Fails if portID is longer than
// 12 characters, contains '+' or '/', or contains any character that is
// not a base64 letter or digit (such as '-').
func NewPortKey(portID string) (PortKey, error) {
	if len(portID) > portKeyB64Len {
		return PortKey{}, ErrPortIDTooLong
	}
	for i := 0; i < len(portID); i++ {
		if portID[i] == '+' || portID[i] == '/' {
			return PortKey{}, ErrPortIDBadChar
		}
	}

	var buf [portKeyB64Len]byte
	for i := range buf {
		buf[i] = '/'
	}
	copy(buf[:], portID)

	var pk PortKey
	n, err := base64.StdEncoding.Decode(pk[:], buf[:])
	if err != nil || n != PortKeySize {
		return PortKey{}, ErrPortIDBadChar
	}
	return pk, nil
}

// String unpacks the PortKey back into its original port identifier,
// trimming the '/' padding base64-encoding reintroduces.
func (p PortKey) String() string {
	var buf [portKeyB64Len]byte
	base64.StdEncoding.Encode(buf[:], p[:])
	n := len(buf)
	for n > 0 && buf[n-1] == '/' {
		n--
	}
	return string(buf[:n])
}

// Height pairs an IBC revision number with a revision height, the two
// components of an ICS-02 client height.
type Height struct {
	Revision uint64
	Height   uint64
}

// Key is a fixed-width, big-endian trie key: a Tag followed by its
// component bytes.
type Key struct {
	buf [1 + PortKeySize + 4 + 8]byte
	n   int
}

// Bytes returns the key's encoded bytes.
func (k *Key) Bytes() []byte { return k.buf[:k.n] }

func newKey(tag Tag) *Key {
	k := &Key{}
	k.buf[0] = byte(tag)
	k.n = 1
	return k
}

func (k *Key) putU32(v uint32) {
	binary.BigEndian.PutUint32(k.buf[k.n:], v)
	k.n += 4
}

func (k *Key) putU64(v uint64) {
	binary.BigEndian.PutUint64(k.buf[k.n:], v)
	k.n += 8
}

func (k *Key) putPortKey(pk PortKey) {
	copy(k.buf[k.n:], pk[:])
	k.n += PortKeySize
}

// ForClientState builds the key for a client state path.
func ForClientState(clientIdx uint32) *Key {
	k := newKey(TagClientState)
	k.putU32(clientIdx)
	return k
}

// ForConsensusState builds the key for a consensus state path at a given
// client and height.
func ForConsensusState(clientIdx uint32, height Height) *Key {
	k := newKey(TagConsensusState)
	k.putU32(clientIdx)
	k.putU64(height.Revision)
	k.putU64(height.Height)
	return k
}

// ForConnection builds the key for a connection end path.
func ForConnection(connectionIdx uint32) *Key {
	k := newKey(TagConnection)
	k.putU32(connectionIdx)
	return k
}

// ForChannelEnd builds the key for a channel end path.
func ForChannelEnd(port PortKey, channelIdx uint32) *Key {
	k := newKey(TagChannelEnd)
	k.putPortKey(port)
	k.putU32(channelIdx)
	return k
}

// ForNextSequence builds the key for the next-sequence-send/recv/ack
// counters of a channel. All three counters share one key: the trie value
// at this key directly encodes the triple, the same way the stored hash
// under a NextSequence key in the original does.
func ForNextSequence(port PortKey, channelIdx uint32) *Key {
	k := newKey(TagNextSequence)
	k.putPortKey(port)
	k.putU32(channelIdx)
	return k
}

// ForCommitment builds the key for a packet commitment path.
func ForCommitment(port PortKey, channelIdx uint32, sequence uint64) *Key {
	k := newKey(TagCommitment)
	k.putPortKey(port)
	k.putU32(channelIdx)
	k.putU64(sequence)
	return k
}

// ForReceipt builds the key for a packet receipt path.
func ForReceipt(port PortKey, channelIdx uint32, sequence uint64) *Key {
	k := newKey(TagReceipt)
	k.putPortKey(port)
	k.putU32(channelIdx)
	k.putU64(sequence)
	return k
}

// ForAck builds the key for a packet acknowledgement path.
func ForAck(port PortKey, channelIdx uint32, sequence uint64) *Key {
	k := newKey(TagAck)
	k.putPortKey(port)
	k.putU32(channelIdx)
	k.putU64(sequence)
	return k
}
