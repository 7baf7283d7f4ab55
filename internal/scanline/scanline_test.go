package scanline

import (
	"errors"
	"io"
	"testing"
)

func TestDescriptorCheck(t *testing.T) {
	tests := []struct {
		d    Descriptor
		want Code
	}{
		{Descriptor{1, 1, 1}, CodeOK},
		{Descriptor{MaxDim, MaxDim, 3}, CodeOK},
		{Descriptor{0, 1, 1}, CodeDimensions},
		{Descriptor{1, MaxDim + 1, 1}, CodeDimensions},
		{Descriptor{4, 4, 2}, CodeChannels},
		{Descriptor{4, 4, 4}, CodeChannels},
	}
	for _, tt := range tests {
		if got := tt.d.Check(); got != tt.want {
			t.Errorf("Check(%s) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestCodeMessages(t *testing.T) {
	for c := CodeOK; c <= CodeEncode; c++ {
		msg := c.String()
		if msg == "" || msg == "Unknown error" {
			t.Errorf("code %d has no message", c)
		}
		if last := msg[len(msg)-1]; last == '.' || last == '!' {
			t.Errorf("message %q ends in punctuation", msg)
		}
		if msg[0] < 'A' || msg[0] > 'Z' {
			t.Errorf("message %q is not capitalized", msg)
		}
	}
	if Code(99).String() != "Unknown error" {
		t.Errorf("unknown code: got %q", Code(99).String())
	}
}

func TestStatusIsSticky(t *testing.T) {
	var s Status
	if !s.OK() || s.Err() != nil {
		t.Fatal("zero Status is not OK")
	}
	first := s.Fail(CodeDecode, io.ErrUnexpectedEOF)
	s.Fail(CodeHeader, nil)
	if s.Err() != first {
		t.Fatal("Err changed after a second failure")
	}
	if !errors.Is(s.Err(), CodeDecode) || errors.Is(s.Err(), CodeHeader) {
		t.Errorf("errors.Is does not match on code: %v", s.Err())
	}
	if !errors.Is(s.Err(), io.ErrUnexpectedEOF) {
		t.Error("cause is not unwrapped")
	}
	var e *Error
	if !errors.As(s.Err(), &e) || e.Detail() != "Error decoding image data: unexpected EOF" {
		t.Errorf("detail: got %v", s.Err())
	}
}

func TestSourceOpenFailureFallsBack(t *testing.T) {
	var s Source
	err := s.Open(Descriptor{Width: 40000, Height: 10, Channels: 3})
	if !errors.Is(err, CodeDimensions) {
		t.Fatalf("got %v, want CodeDimensions", err)
	}
	if s.Descriptor() != fallback {
		t.Fatalf("descriptor: got %s, want %s", s.Descriptor(), fallback)
	}

	row := []byte{7}
	if s.Next(row) {
		t.Fatal("Next succeeded on a failed source")
	}
	if row[0] != 0 {
		t.Error("row not zero-filled")
	}
}

func TestSourceFailRowBlanks(t *testing.T) {
	var s Source
	if err := s.Open(Descriptor{Width: 2, Height: 3, Channels: 1}); err != nil {
		t.Fatal(err)
	}
	row := []byte{1, 2}
	if !s.Next(row) {
		t.Fatal("Next failed on a healthy source")
	}
	if err := s.FailRow(row, io.ErrUnexpectedEOF); !errors.Is(err, CodeDecode) {
		t.Fatalf("got %v, want CodeDecode", err)
	}
	if row[0] != 0 || row[1] != 0 {
		t.Errorf("row not blanked: %v", row)
	}
	if s.Descriptor().Width != 2 {
		t.Error("read failure reset the descriptor")
	}
	row = []byte{5, 5}
	if s.Next(row) || row[0] != 0 {
		t.Error("later reads are not inert")
	}
}

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	f()
}

func TestContractViolationsPanic(t *testing.T) {
	var s Source
	if err := s.Open(Descriptor{Width: 2, Height: 1, Channels: 3}); err != nil {
		t.Fatal(err)
	}
	mustPanic(t, "short read buffer", func() { s.Next(make([]byte, 5)) })
	s.Next(make([]byte, 6))
	mustPanic(t, "read past height", func() { s.Next(make([]byte, 6)) })

	sink := NewSink(Descriptor{Width: 1, Height: 1, Channels: 1})
	if !sink.Next([]byte{1}) || !sink.Last() {
		t.Fatal("single-row sink did not accept its row")
	}
	mustPanic(t, "write past height", func() { sink.Next([]byte{1}) })
	mustPanic(t, "bad writer descriptor", func() { NewSink(Descriptor{Width: 1, Height: 1, Channels: 2}) })
}
