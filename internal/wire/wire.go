// Package wire frames cache entries with their expiration metadata so that
// absolute and sliding expiry can be enforced on top of any TTL-only byte
// provider.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	kindEntry byte = 1

	headerLen = 4 + 1 + 1 + 8 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("cacheaside: corrupt entry")
	magic4     = [...]byte{'C', 'A', 'S', 'D'}
)

// Entry is a decoded frame. A zero AbsoluteExpiresAt means no ceiling and a
// zero Sliding means no sliding window. Touched is the last write or read
// that reset the sliding window.
type Entry struct {
	AbsoluteExpiresAt time.Time
	Sliding           time.Duration
	Touched           time.Time
	Payload           []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode lays out:
//
//	magic(4) | ver(1) | kind(1) | absUnixNano(i64 be) | slidingNanos(i64 be) |
//	touchedUnixNano(i64 be) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(unixNano(e.AbsoluteExpiresAt)))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.Sliding))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(unixNano(e.Touched)))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses a frame produced by Encode. Payload aliases b.
// Trailing bytes, negative durations and bad headers are all ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}

	off := 6

	abs := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	sliding := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	touched := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if abs < 0 || sliding < 0 || touched < 0 {
		return Entry{}, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		AbsoluteExpiresAt: fromUnixNano(abs),
		Sliding:           time.Duration(sliding),
		Touched:           fromUnixNano(touched),
		Payload:           b[off : off+vlen],
	}, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
