package ghash

import "testing"

func TestZeroIsReserved(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Fatalf("expected zero-value Hash to report IsZero")
	}
	if Sum([]byte("x")).IsZero() {
		t.Fatalf("digest of non-empty input should not be zero")
	}
}

func TestBuilderMatchesOneShot(t *testing.T) {
	b := NewBuilder()
	b.Write([]byte("abc"))
	b.Write([]byte("def"))
	got := b.Sum()

	want := Sum([]byte("abcdef"))
	if got != want {
		t.Fatalf("streaming builder diverged from one-shot Sum: %x vs %x", got, want)
	}
}

func TestBuilderChunkingIndependentOfSplit(t *testing.T) {
	whole := Sum([]byte("hello world"))
	split := Sum([]byte("hello "), []byte("world"))
	if whole != split {
		t.Fatalf("Sum should be independent of how chunks are split: %x vs %x", whole, split)
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	h := Sum([]byte("round trip"))
	got, err := FromBytes(h.Bytes())
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: %x vs %x", got, h)
	}

	if _, err := FromBytes(make([]byte, 31)); err != ErrWrongLength {
		t.Fatalf("expected ErrWrongLength for short input, got %v", err)
	}
}

func TestFormatting(t *testing.T) {
	h := Sum([]byte("formatting"))

	if got, err := FromHex(h.Hex()); err != nil || got != h {
		t.Fatalf("hex round trip failed: got=%x err=%v", got, err)
	}
	if h.Base64() == "" {
		t.Fatalf("expected non-empty base64 encoding")
	}
	if h.Base58() == "" {
		t.Fatalf("expected non-empty base58 encoding")
	}
	if h.String() != h.Hex() {
		t.Fatalf("String() should match Hex()")
	}
}
