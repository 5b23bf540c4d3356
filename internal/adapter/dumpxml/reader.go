// Package dumpxml streams the records of a dump file. Files may be gzip
// compressed or plain XML; each top-level entity element is decoded on its
// own so memory use does not grow with the file.
package dumpxml

import (
	"bufio"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Reader yields the records of one dump.
type Reader struct {
	typ     domain.EntityType
	closers []io.Closer
	dec     *xml.Decoder

	read    int
	skipped int
}

// Open opens the dump file at path as a stream of records of type t.
func Open(path string, t domain.EntityType) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	r, err := NewReader(f, t)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader streams records of type t from src, decompressing it when it
// starts with the gzip magic bytes. Closing the Reader does not close src.
func NewReader(src io.Reader, t domain.EntityType) (*Reader, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("dumpxml: unknown entity type %q", t)
	}

	br := bufio.NewReaderSize(src, 64<<10)
	r := &Reader{typ: t}

	var in io.Reader = br
	if magic, err := br.Peek(len(gzipMagic)); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("dumpxml: gzip: %w", err)
		}
		r.closers = append(r.closers, gz)
		in = gz
	}

	r.dec = xml.NewDecoder(in)
	// Dumps declare UTF-8; anything else is passed through unchanged.
	r.dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	return r, nil
}

// Next returns the next well-formed record. Elements without a usable id are
// skipped and counted. Returns io.EOF after the last record.
func (r *Reader) Next() (domain.Record, error) {
	element := r.typ.String()
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("dumpxml: %s #%d: %w", element, r.read+r.skipped+1, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != element {
			continue
		}

		rec, err := r.decode(&start)
		if err != nil {
			var syntax *xml.SyntaxError
			if errors.As(err, &syntax) {
				return nil, fmt.Errorf("dumpxml: %s #%d: %w", element, r.read+r.skipped+1, err)
			}
			r.skipped++
			continue
		}
		if rec == nil {
			r.skipped++
			continue
		}
		r.read++
		return rec, nil
	}
}

// Read returns the number of records returned so far.
func (r *Reader) Read() int { return r.read }

// Skipped returns the number of malformed elements skipped so far.
func (r *Reader) Skipped() int { return r.skipped }

// Close releases the decompressor and the file opened by Open.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Reader) decode(start *xml.StartElement) (domain.Record, error) {
	switch r.typ {
	case domain.EntityTypeArtist:
		var a xmlArtist
		if err := r.dec.DecodeElement(&a, start); err != nil {
			return nil, err
		}
		return a.record(), nil
	case domain.EntityTypeLabel:
		var l xmlLabel
		if err := r.dec.DecodeElement(&l, start); err != nil {
			return nil, err
		}
		return l.record(), nil
	case domain.EntityTypeMaster:
		var m xmlMaster
		if err := r.dec.DecodeElement(&m, start); err != nil {
			return nil, err
		}
		return m.record(), nil
	case domain.EntityTypeRelease:
		var rel xmlRelease
		if err := r.dec.DecodeElement(&rel, start); err != nil {
			return nil, err
		}
		return rel.record(), nil
	}
	return nil, fmt.Errorf("dumpxml: unknown entity type %q", r.typ)
}
