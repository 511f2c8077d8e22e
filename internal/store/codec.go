package store

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"

	"github.com/procq/procq/internal/task"
)

// Task envelope framing: json | crc32c(json), crc big-endian.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeTask(t task.Task) ([]byte, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+4)
	out = append(out, body...)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc32.Checksum(body, castagnoli))
	return append(out, cb[:]...), nil
}

func decodeTask(b []byte) (task.Task, bool) {
	if len(b) < 4 {
		return task.Task{}, false
	}
	body := b[:len(b)-4]
	want := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != want {
		return task.Task{}, false
	}
	var t task.Task
	if err := json.Unmarshal(body, &t); err != nil {
		return task.Task{}, false
	}
	return t, true
}

// Lease value: expiry_ms (8B BE) | priority (4B BE).

func encodeLease(expiresMs int64, priority uint32) []byte {
	var v [12]byte
	binary.BigEndian.PutUint64(v[0:8], uint64(expiresMs))
	binary.BigEndian.PutUint32(v[8:12], priority)
	return v[:]
}

func decodeLease(v []byte) (expiresMs int64, priority uint32, ok bool) {
	if len(v) < 12 {
		return 0, 0, false
	}
	return int64(binary.BigEndian.Uint64(v[0:8])), binary.BigEndian.Uint32(v[8:12]), true
}
