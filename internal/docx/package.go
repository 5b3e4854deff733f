// Package docx models a Word document container closely enough to rewrite
// body text as tracked changes while carrying everything else through
// untouched.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors for whole-document failures. Per-proposal failures are
// reported in the change report instead and never surface here.
var (
	ErrCorrupt           = errors.New("corrupt container")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrUnwritable        = errors.New("unwritable document")
)

// DocumentPart is the archive entry holding the body content.
const DocumentPart = "word/document.xml"

// ownedParts is the allow-list of entries the engine may regenerate.
// Every other entry is copied through with its compressed bytes untouched.
var ownedParts = map[string]bool{
	DocumentPart: true,
}

// part is one archive entry, kept in original order.
type part struct {
	header zip.FileHeader
	file   *zip.File // source entry; read until the part is replaced
	data   []byte    // regenerated content, nil while untouched
}

// Package is a docx archive held as an ordered name→bytes mapping.
type Package struct {
	parts []*part
	index map[string]*part
}

// OpenPackage parses input bytes as a docx archive. It rejects archives that
// are not readable zips or that lack the mandatory document part.
func OpenPackage(input []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(input), int64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	p := &Package{index: make(map[string]*part)}
	for _, f := range zr.File {
		if _, dup := p.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrCorrupt, f.Name)
		}
		pt := &part{header: f.FileHeader, file: f}
		p.parts = append(p.parts, pt)
		p.index[f.Name] = pt
	}

	if _, ok := p.index[DocumentPart]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrUnsupportedFormat, DocumentPart)
	}
	return p, nil
}

// Part returns the decompressed content of one entry.
func (p *Package) Part(name string) ([]byte, error) {
	pt, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrUnsupportedFormat, name)
	}
	if pt.data != nil {
		return pt.data, nil
	}

	rc, err := pt.file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorrupt, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, name, err)
	}
	return data, nil
}

// Replace swaps the content of an owned part. Replacing anything outside the
// owned set is refused so pass-through entries stay byte-exact.
func (p *Package) Replace(name string, data []byte) error {
	if !ownedParts[name] {
		return fmt.Errorf("%w: part %s is not owned by the engine", ErrUnwritable, name)
	}
	pt, ok := p.index[name]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrUnsupportedFormat, name)
	}
	pt.data = data
	return nil
}

// Bytes writes the archive back out in original entry order. Untouched
// entries are copied raw; regenerated parts are recompressed.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, pt := range p.parts {
		if pt.data == nil {
			if err := copyRawEntry(zw, pt.file); err != nil {
				return nil, fmt.Errorf("%w: copy %s: %v", ErrUnwritable, pt.header.Name, err)
			}
			continue
		}

		hdr := pt.header
		hdr.Method = zip.Deflate
		hdr.CRC32 = 0
		hdr.CompressedSize64 = 0
		hdr.UncompressedSize64 = 0
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrUnwritable, pt.header.Name, err)
		}
		if _, err := w.Write(pt.data); err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrUnwritable, pt.header.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	return buf.Bytes(), nil
}

// copyRawEntry copies one entry without decompressing it.
func copyRawEntry(zw *zip.Writer, f *zip.File) error {
	hdr := f.FileHeader
	w, err := zw.CreateRaw(&hdr)
	if err != nil {
		return err
	}
	r, err := f.OpenRaw()
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}
