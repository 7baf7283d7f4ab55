package hasher

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriterMatchesContentHash(t *testing.T) {
	data := bytes.Repeat([]byte("boxshrink"), 1000)

	var out bytes.Buffer
	hw := NewWriter(&out)
	for i := 0; i < len(data); i += 77 {
		end := min(i+77, len(data))
		if _, err := hw.Write(data[i:end]); err != nil {
			t.Fatal(err)
		}
	}

	if !bytes.Equal(out.Bytes(), data) {
		t.Fatal("writer did not pass data through")
	}
	if hw.Size() != int64(len(data)) {
		t.Errorf("size: got %d, want %d", hw.Size(), len(data))
	}
	want := ContentHash(data, HexLen)
	if got := hw.Sum(HexLen); got != want {
		t.Errorf("sum: got %s, want %s", got, want)
	}
	if got, _ := ContentHashReader(bytes.NewReader(data), HexLen); got != want {
		t.Errorf("reader hash: got %s, want %s", got, want)
	}
}

func TestContentHashLength(t *testing.T) {
	tests := []struct {
		hexLen int
		want   int
	}{
		{8, 8},
		{16, 16},
		{0, 16},
		{40, 16},
	}
	for _, tt := range tests {
		got := ContentHash([]byte("x"), tt.hexLen)
		if len(got) != tt.want {
			t.Errorf("hexLen %d: got %q", tt.hexLen, got)
		}
		if strings.Trim(got, "0123456789abcdef") != "" {
			t.Errorf("not lowercase hex: %q", got)
		}
	}
	if ContentHash([]byte("a"), 0) == ContentHash([]byte("b"), 0) {
		t.Error("different inputs hash equal")
	}
}
