package codec

import (
	"bytes"
	"testing"
	"time"
)

type sample struct {
	Name string     `cbor:"name"`
	At   *time.Time `cbor:"at"`
	Rest float64    `cbor:"rest"`
}

func TestDeterministicEncoding(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 250_000_000, time.UTC)
	first, err := Marshal(sample{Name: "a", At: &at, Rest: 1.5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Marshal(sample{Name: "a", At: &at, Rest: 1.5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical encodings")
	}

	var decoded sample
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.At == nil || !decoded.At.Equal(at) {
		t.Fatalf("expected sub-second timestamp to survive, got %v", decoded.At)
	}
}

func TestNilTimeStaysNil(t *testing.T) {
	data, err := Marshal(sample{Name: "b"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded sample
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.At != nil {
		t.Fatalf("expected nil timestamp")
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	var decoded sample
	if err := Unmarshal([]byte{0xff, 0x00}, &decoded); err == nil {
		t.Fatalf("expected decode error")
	}
}
