package protocol

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-tcp/api"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var hdr [HeaderSize]byte
	Encode(8192, hdr[:])

	got, err := Decode(hdr[:], 1<<20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 8192 {
		t.Fatalf("got %d, want 8192", got)
	}
}

func TestDecodeZeroLengthIsMalformed(t *testing.T) {
	var hdr [HeaderSize]byte
	Encode(0, hdr[:])

	_, err := Decode(hdr[:], 1<<20)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrCodeMalformedHeader {
		t.Fatalf("expected MalformedHeader, got %v", err)
	}
}

func TestDecodeOverMaxIsMalformed(t *testing.T) {
	var hdr [HeaderSize]byte
	Encode(2048, hdr[:])

	_, err := Decode(hdr[:], 1024)
	if !errors.Is(err, api.ErrMalformedHeader) {
		t.Fatalf("expected MalformedHeader, got %v", err)
	}
}

func TestTotalFrameSize(t *testing.T) {
	if got := TotalFrameSize(100); got != HeaderSize+100 {
		t.Fatalf("got %d, want %d", got, HeaderSize+100)
	}
}
