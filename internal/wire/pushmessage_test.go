package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	message := map[string]any{
		"type":    "SegmentClosing",
		"payload": []string{"a", "b"},
	}

	encoded, err := EncodePushMessage(1234567890, message)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	timestamp, payload, err := DecodePushMessage(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if timestamp != 1234567890 {
		t.Errorf("expected timestamp 1234567890, got %d", timestamp)
	}
	want := `{"payload":["a","b"],"type":"SegmentClosing"}`
	if string(payload) != want {
		t.Errorf("payload mismatch:\n got %s\nwant %s", payload, want)
	}
}

func TestEncodeLengthAlwaysMultipleOfFour(t *testing.T) {
	// Vary the payload length across all four padding residues.
	for _, name := range []string{"", "a", "ab", "abc", "abcd", "abcde"} {
		encoded := EncodePushMessageRaw(1, []byte(`"`+name+`"`))
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			t.Fatalf("output is not valid base64: %v", err)
		}
		if len(raw)%4 != 0 {
			t.Errorf("payload %q: buffer length %d is not a multiple of 4", name, len(raw))
		}
		if int(binary.LittleEndian.Uint32(raw[0:])) != len(raw) {
			t.Errorf("payload %q: declared length %d != actual %d", name, binary.LittleEndian.Uint32(raw[0:]), len(raw))
		}
	}
}

func TestEncodeHeaderLayout(t *testing.T) {
	encoded := EncodePushMessageRaw(0x1122334455667788, []byte(`{}`))
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("output is not valid base64: %v", err)
	}

	le := binary.LittleEndian
	be := binary.BigEndian

	if got := le.Uint32(raw[4:]); got != 0x0c {
		t.Errorf("word at 4: got %#x, want 0x0c", got)
	}
	if got := be.Uint32(raw[20:]); got != 0x02 {
		t.Errorf("word at 20: got %#x, want 0x02", got)
	}
	if got := be.Uint32(raw[48:]); got != 0x00010300 {
		t.Errorf("word at 48: got %#x, want 0x00010300", got)
	}
	if got := le.Uint64(raw[56:]); got != 0x1122334455667788 {
		t.Errorf("timestamp: got %#x", got)
	}
	if got := be.Uint32(raw[76:]); got != 0x00008300 {
		t.Errorf("word at 76: got %#x, want 0x00008300", got)
	}
	if got := le.Uint32(raw[84:]); got != 2 {
		t.Errorf("payload length: got %d, want 2", got)
	}
	if !bytes.Equal(raw[88:90], []byte(`{}`)) {
		t.Errorf("payload bytes: got %q", raw[88:90])
	}
	// 88 + 2 rounds up to 92; the pad must be zero.
	if len(raw) != 92 || raw[90] != 0 || raw[91] != 0 {
		t.Errorf("expected 92-byte zero-padded buffer, got len=%d tail=%v", len(raw), raw[88:])
	}
}

func TestDecodeRejectsCorruptedHeader(t *testing.T) {
	encoded := EncodePushMessageRaw(1, []byte(`{}`))
	raw, _ := base64.StdEncoding.DecodeString(encoded)
	raw[5] = 0xff
	if _, _, err := DecodePushMessage(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Error("expected an error for a corrupted header word")
	}
}
