// Package wire implements the binary push-message envelope parsed by the
// game client's message bus. The layout is fixed by the client; every field
// width, byte order, and constant here must stay bit-exact.
package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// headerSize is the fixed envelope prefix before the JSON payload.
const headerSize = 88

var (
	// ErrTruncated means the buffer ended before the declared payload.
	ErrTruncated = errors.New("push message truncated")
	// ErrBadHeader means a fixed header word did not match.
	ErrBadHeader = errors.New("push message header mismatch")
)

// EncodePushMessage wraps an arbitrary JSON-marshalable message in the
// client's binary envelope and returns it base64-encoded. The total buffer
// is zero-padded to a multiple of 4 bytes.
func EncodePushMessage(timestamp uint64, message any) (string, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to encode push payload: %w", err)
	}
	return EncodePushMessageRaw(timestamp, payload), nil
}

// EncodePushMessageRaw is EncodePushMessage over pre-serialized JSON bytes.
func EncodePushMessageRaw(timestamp uint64, payload []byte) string {
	total := headerSize + len(payload)
	if rem := total % 4; rem != 0 {
		total += 4 - rem
	}

	buf := make([]byte, total)
	le := binary.LittleEndian
	be := binary.BigEndian
	off := 0

	putU32 := func(order binary.ByteOrder, v uint32) {
		order.PutUint32(buf[off:], v)
		off += 4
	}
	putU16s := func(vs ...uint16) {
		for _, v := range vs {
			le.PutUint16(buf[off:], v)
			off += 2
		}
	}

	putU32(le, uint32(total))
	putU32(le, 0x0c)
	putU16s(0x08, 0x0e, 0x07, 0x08)
	putU32(le, 0x08)
	putU32(be, 0x02)
	putU32(le, 0x14)
	putU16s(0x00, 0x0e, 0x14, 0x06, 0x00, 0x05, 0x08, 0x0c)
	putU32(le, 0x0e)
	putU32(be, 0x00010300)
	putU32(le, 0x14)
	le.PutUint64(buf[off:], timestamp)
	off += 8
	putU16s(0x08, 0x0c, 0x06, 0x08)
	putU32(le, 0x08)
	putU32(be, 0x00008300)
	putU32(le, 0x04)
	putU32(le, uint32(len(payload)))
	copy(buf[off:], payload)

	return base64.StdEncoding.EncodeToString(buf)
}

// DecodePushMessage reverses EncodePushMessage, validating the fixed header
// words and recovering the timestamp and raw JSON payload.
func DecodePushMessage(encoded string) (uint64, []byte, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to decode push message: %w", err)
	}
	if len(buf) < headerSize {
		return 0, nil, ErrTruncated
	}

	le := binary.LittleEndian
	be := binary.BigEndian

	if int(le.Uint32(buf[0:])) != len(buf) {
		return 0, nil, ErrBadHeader
	}

	// Spot-check the constant words that frame the two variable fields.
	if le.Uint32(buf[4:]) != 0x0c ||
		be.Uint32(buf[48:]) != 0x00010300 ||
		be.Uint32(buf[76:]) != 0x00008300 {
		return 0, nil, ErrBadHeader
	}

	timestamp := le.Uint64(buf[56:])
	payloadLen := int(le.Uint32(buf[84:]))
	if headerSize+payloadLen > len(buf) {
		return 0, nil, ErrTruncated
	}

	payload := buf[headerSize : headerSize+payloadLen]
	if trailing := buf[headerSize+payloadLen:]; !bytes.Equal(trailing, make([]byte, len(trailing))) {
		return 0, nil, ErrBadHeader
	}
	return timestamp, payload, nil
}
