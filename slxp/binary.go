package slxp

import (
	"encoding/binary"
	"io"

	"github.com/binzume/sceneexport/geom"
	"github.com/pkg/errors"
)

var (
	Magic   = [4]byte{'S', 'L', 'X', 'P'}
	Version = [3]byte{0, 0, 1}

	ErrBadMagic   = errors.New("not an slxp file")
	ErrBadVersion = errors.New("unsupported slxp version")
)

// ByteOrder is the byte order of binary documents. The format is an internal interchange
// format and is always written in host order.
var ByteOrder binary.ByteOrder = binary.NativeEndian

// maxLength bounds length prefixes accepted by Reader.
const maxLength = 1 << 28

// Writer writes binary records. The first error is kept and later writes are skipped.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (p *Writer) Err() error {
	return p.err
}

func (p *Writer) write(v interface{}) {
	if p.err == nil {
		p.err = binary.Write(p.w, ByteOrder, v)
	}
}

func (p *Writer) writeLength(n int) {
	p.write(uint64(n))
}

func (p *Writer) writeUint8(v uint8) {
	p.write(v)
}

func (p *Writer) writeUint32(v uint32) {
	p.write(v)
}

// writeOptionalUint32 writes a presence byte followed by v if it is set.
func (p *Writer) writeOptionalUint32(v *uint32) {
	if v == nil {
		p.writeUint8(0)
		return
	}
	p.writeUint8(1)
	p.writeUint32(*v)
}

func (p *Writer) writeString(s string) {
	p.writeLength(len(s))
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *Writer) writeVector3(v *geom.Vector3) {
	if p.err == nil {
		p.err = v.WriteBinary(p.w, ByteOrder)
	}
}

func (p *Writer) writeVector4(v *geom.Vector4) {
	if p.err == nil {
		p.err = v.WriteBinary(p.w, ByteOrder)
	}
}

func (p *Writer) writeMatrix(m *geom.Matrix4) {
	if p.err == nil {
		p.err = m.WriteBinary(p.w, ByteOrder)
	}
}

// writeSlice writes a length prefix followed by the raw elements.
func (p *Writer) writeSlice(n int, data interface{}) {
	p.writeLength(n)
	if n > 0 {
		p.write(data)
	}
}

// Reader decodes binary documents written by Writer.
type Reader struct {
	r   io.Reader
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (p *Reader) Err() error {
	return p.err
}

func (p *Reader) read(v interface{}) {
	if p.err == nil {
		p.err = binary.Read(p.r, ByteOrder, v)
	}
}

func (p *Reader) readLength() int {
	var n uint64
	p.read(&n)
	if p.err == nil && n > maxLength {
		p.err = errors.Errorf("length %d too large", n)
	}
	if p.err != nil {
		return 0
	}
	return int(n)
}

func (p *Reader) readUint8() uint8 {
	var v uint8
	p.read(&v)
	return v
}

func (p *Reader) readUint32() uint32 {
	var v uint32
	p.read(&v)
	return v
}

func (p *Reader) readOptionalUint32() *uint32 {
	if p.readUint8() == 0 || p.err != nil {
		return nil
	}
	v := p.readUint32()
	if p.err != nil {
		return nil
	}
	return &v
}

func (p *Reader) readString() string {
	n := p.readLength()
	if p.err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.r, buf); err != nil {
		p.err = err
		return ""
	}
	return string(buf)
}

func (p *Reader) readVector3(v *geom.Vector3) {
	p.read(v)
}

func (p *Reader) readVector4(v *geom.Vector4) {
	p.read(v)
}

func (p *Reader) readMatrix(m *geom.Matrix4) {
	p.read(m)
}

func readSlice[T any](p *Reader) []T {
	n := p.readLength()
	if p.err != nil || n == 0 {
		return nil
	}
	s := make([]T, n)
	p.read(s)
	if p.err != nil {
		return nil
	}
	return s
}

func (p *Reader) readHeader() error {
	var magic [4]byte
	var version [3]byte
	p.read(&magic)
	p.read(&version)
	if p.err != nil {
		return p.err
	}
	if magic != Magic {
		return ErrBadMagic
	}
	if version != Version {
		return errors.Wrapf(ErrBadVersion, "%d.%d.%d", version[0], version[1], version[2])
	}
	return nil
}
