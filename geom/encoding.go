package geom

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/chewxy/math32"
)

// SanitizeLimit replaces infinities in sanitized output.
const SanitizeLimit = 1e30

// Sanitize maps values that have no strict-JSON representation to finite ones.
func Sanitize(x Element) Element {
	switch {
	case math32.IsNaN(x):
		return 0
	case math32.IsInf(x, 1):
		return SanitizeLimit
	case math32.IsInf(x, -1):
		return -SanitizeLimit
	}
	return x
}

func sanitizeAll(a []Element) []Element {
	for i, v := range a {
		a[i] = Sanitize(v)
	}
	return a
}

func (v Vector2) MarshalJSON() ([]byte, error) {
	return json.Marshal(sanitizeAll([]Element{v.X, v.Y}))
}

func (v Vector3) MarshalJSON() ([]byte, error) {
	return json.Marshal(sanitizeAll([]Element{v.X, v.Y, v.Z}))
}

func (v Vector4) MarshalJSON() ([]byte, error) {
	return json.Marshal(sanitizeAll([]Element{v.X, v.Y, v.Z, v.W}))
}

func unmarshalElements(data []byte, dst []*Element) error {
	var a []Element
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	for i := range dst {
		if i < len(a) {
			*dst[i] = a[i]
		}
	}
	return nil
}

func (v *Vector2) UnmarshalJSON(data []byte) error {
	return unmarshalElements(data, []*Element{&v.X, &v.Y})
}

func (v *Vector3) UnmarshalJSON(data []byte) error {
	return unmarshalElements(data, []*Element{&v.X, &v.Y, &v.Z})
}

func (v *Vector4) UnmarshalJSON(data []byte) error {
	return unmarshalElements(data, []*Element{&v.X, &v.Y, &v.Z, &v.W})
}

// MarshalJSON writes the matrix as four sanitized runs of four.
func (mat Matrix4) MarshalJSON() ([]byte, error) {
	rows := mat.Rows4x4()
	for i := range rows {
		sanitizeAll(rows[i][:])
	}
	return json.Marshal(rows)
}

func (mat *Matrix4) UnmarshalJSON(data []byte) error {
	var rows [4][4]Element
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	for i := 0; i < 16; i++ {
		mat[i] = rows[i/4][i%4]
	}
	return nil
}

func (v *Vector2) WriteBinary(w io.Writer, order binary.ByteOrder) error {
	return binary.Write(w, order, v)
}

func (v *Vector3) WriteBinary(w io.Writer, order binary.ByteOrder) error {
	return binary.Write(w, order, v)
}

func (v *Vector4) WriteBinary(w io.Writer, order binary.ByteOrder) error {
	return binary.Write(w, order, v)
}

func (mat *Matrix4) WriteBinary(w io.Writer, order binary.ByteOrder) error {
	return binary.Write(w, order, mat)
}
