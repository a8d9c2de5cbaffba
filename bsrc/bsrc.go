// Package bsrc implements the byte-source abstraction bgpgrep reads MRT
// archives through: a small Source contract plus compression-aware
// constructors that pick a decoder from a file's extension.
package bsrc

import (
	"bufio"
	"compress/bzip2"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Source is a read-only byte stream with sticky error semantics: once an
// operation fails, every subsequent call returns the same error.
type Source interface {
	io.Reader
	io.Closer
	// Err returns the sticky error that caused the last short read, if any.
	Err() error
}

type source struct {
	r       io.Reader
	closers []io.Closer
	err     error
}

func (s *source) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

func (s *source) Err() error { return s.err }

func (s *source) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Codec names the compression format a Source should decode on the fly.
type Codec int

const (
	CodecNone Codec = iota
	CodecGzip
	CodecBzip2
	CodecXZ
	CodecLZ4
)

// CodecForExt infers a Codec from a file's extension, the same mapping
// bgpgrep's CLI uses to decide how to read each input file.
func CodecForExt(name string) Codec {
	switch {
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".z"):
		return CodecGzip
	case strings.HasSuffix(name, ".bz2"):
		return CodecBzip2
	case strings.HasSuffix(name, ".xz"):
		return CodecXZ
	case strings.HasSuffix(name, ".lz4"):
		return CodecLZ4
	default:
		return CodecNone
	}
}

// OpenFile opens name (or stdin, for "-") and wraps it with the decoder
// CodecForExt(name) selects.
func OpenFile(name string) (Source, error) {
	if name == "-" {
		return wrap(os.Stdin, nil, CodecNone)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "bsrc: opening %s", name)
	}
	src, err := wrap(f, []io.Closer{f}, CodecForExt(name))
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// Wrap builds a Source over an already-open reader, decoding it with codec.
func Wrap(r io.Reader, codec Codec) (Source, error) {
	var closers []io.Closer
	if c, ok := r.(io.Closer); ok {
		closers = []io.Closer{c}
	}
	return wrap(r, closers, codec)
}

func wrap(r io.Reader, closers []io.Closer, codec Codec) (Source, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	switch codec {
	case CodecNone:
		return &source{r: br, closers: closers}, nil
	case CodecGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "bsrc: opening gzip stream")
		}
		return &source{r: gz, closers: append(closers, gz)}, nil
	case CodecBzip2:
		return &source{r: bzip2.NewReader(br), closers: closers}, nil
	case CodecXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "bsrc: opening xz stream")
		}
		return &source{r: xr, closers: closers}, nil
	case CodecLZ4:
		return &source{r: lz4.NewReader(br), closers: closers}, nil
	default:
		return nil, errors.Errorf("bsrc: unknown codec %d", codec)
	}
}

// MemSource returns a Source over an in-memory byte slice, used for tests
// and for small embedded inputs that don't warrant opening a file.
func MemSource(b []byte) Source {
	return &source{r: &memReader{buf: b}}
}

type memReader struct {
	buf []byte
	pos int
}

func (m *memReader) Read(p []byte) (int, error) {
	if m.pos >= len(m.buf) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += n
	return n, nil
}
