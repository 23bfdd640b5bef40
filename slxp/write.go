package slxp

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/binzume/sceneexport/export"
	"github.com/pkg/errors"
)

const (
	FormatJSON   = "json"
	FormatBinary = "binary"
)

// WriteJSON writes doc as one line of compact JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

func WriteBinary(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	if err := doc.WriteBinary(NewWriter(bw)); err != nil {
		return err
	}
	return bw.Flush()
}

// Write writes doc in the given format.
func Write(w io.Writer, doc *Document, format string) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, doc)
	case FormatBinary:
		return WriteBinary(w, doc)
	}
	return errors.Errorf("unknown slxp format %q", format)
}

// ReadDocument decodes a binary document.
func ReadDocument(r io.Reader) (*Document, error) {
	p := NewReader(bufio.NewReader(r))
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	doc := &Document{}
	doc.Title = p.readString()
	doc.Collection.readBinary(p)
	if p.Err() != nil {
		return nil, errors.Wrap(p.Err(), "read slxp")
	}
	return doc, nil
}

// ReadJSON decodes a JSON document.
func ReadJSON(r io.Reader) (*Document, error) {
	doc := &Document{}
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrap(err, "read slxp json")
	}
	return doc, nil
}

// Save writes doc to path. Nothing is left at path if writing fails.
func Save(doc *Document, path, format string) error {
	if path == "" {
		return export.ErrNoFilename
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	err = Write(f, doc, format)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}
