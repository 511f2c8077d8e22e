package store

import (
	"bytes"
	"testing"

	"github.com/procq/procq/internal/task"
)

func TestReadyKeyOrdersByPriorityThenSeq(t *testing.T) {
	tt := task.TypeOCRExtraction

	high := readyKey(tt, 9, 10)
	low := readyKey(tt, 1, 1)
	if bytes.Compare(high, low) >= 0 {
		t.Fatalf("priority 9 should sort before priority 1")
	}

	first := readyKey(tt, 5, 1)
	second := readyKey(tt, 5, 2)
	if bytes.Compare(first, second) >= 0 {
		t.Fatalf("same priority should keep sequence order")
	}
}

func TestParseReadyKeyRoundTrip(t *testing.T) {
	tt := task.TypeImageAnalysis
	key := readyKey(tt, 7, 42)
	invPrio, seq, ok := parseReadyKey(key, len(readyPrefix(tt)))
	if !ok {
		t.Fatalf("parse failed")
	}
	if ^invPrio != 7 {
		t.Fatalf("priority: got %d want 7", ^invPrio)
	}
	if seq != 42 {
		t.Fatalf("seq: got %d want 42", seq)
	}
}

func TestParseReadyKeyRejectsMalformed(t *testing.T) {
	tt := task.TypeVoiceSynthesis
	key := append(readyPrefix(tt), 0x01)
	if _, _, ok := parseReadyKey(key, len(readyPrefix(tt))); ok {
		t.Fatalf("short key should not parse")
	}
}

func TestLeaseIdxKeyOrdersByExpiry(t *testing.T) {
	tt := task.TypeStepDetection
	early := leaseIdxKey(tt, 1000, 99)
	late := leaseIdxKey(tt, 2000, 1)
	if bytes.Compare(early, late) >= 0 {
		t.Fatalf("earlier expiry should sort first")
	}
}

func TestStatusExpKeyOrdersByExpiry(t *testing.T) {
	early := statusExpKey(1000, "zzz")
	late := statusExpKey(2000, "aaa")
	if bytes.Compare(early, late) >= 0 {
		t.Fatalf("earlier expiry should sort first")
	}
}

func TestKeyUpperBoundCoversPrefix(t *testing.T) {
	tt := task.TypeContentGeneration
	prefix := readyPrefix(tt)
	upper := keyUpperBound(prefix)
	key := readyKey(tt, 1, ^uint64(0))
	if bytes.Compare(key, upper) >= 0 {
		t.Fatalf("max ready key should stay under the upper bound")
	}
}
