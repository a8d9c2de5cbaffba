package bsrc

import (
	"io"
	"testing"
)

func TestCodecForExt(t *testing.T) {
	cases := map[string]Codec{
		"foo.gz":  CodecGzip,
		"foo.z":   CodecGzip,
		"foo.bz2": CodecBzip2,
		"foo.xz":  CodecXZ,
		"foo.lz4": CodecLZ4,
		"foo.mrt": CodecNone,
	}
	for name, want := range cases {
		if got := CodecForExt(name); got != want {
			t.Errorf("CodecForExt(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMemSourceReadsThrough(t *testing.T) {
	src := MemSource([]byte("hello"))
	defer src.Close()
	buf := make([]byte, 5)
	n, err := src.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("unexpected read: n=%d buf=%q", n, buf)
	}
}

func TestMemSourceEOF(t *testing.T) {
	src := MemSource(nil)
	buf := make([]byte, 1)
	if _, err := src.Read(buf); err != io.EOF {
		t.Fatalf("expected EOF on empty source, got %v", err)
	}
}
