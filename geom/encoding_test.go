package geom

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"
)

func TestSanitize(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	if Sanitize(nan) != 0 {
		t.Error("NaN should be 0")
	}
	if Sanitize(inf) != 1e30 {
		t.Error("+Inf should be 1e30", Sanitize(inf))
	}
	if Sanitize(-inf) != -1e30 {
		t.Error("-Inf should be -1e30", Sanitize(-inf))
	}
	for _, v := range []float32{0, 1.5, -3, 1e20, -1e-20} {
		if Sanitize(v) != v {
			t.Error("finite values should be unchanged", v)
		}
	}
}

func TestVectorJSON(t *testing.T) {
	v := Vector3{1, float32(math.NaN()), float32(math.Inf(-1))}
	data, err := json.Marshal(&v)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1,0,-1e+30]" {
		t.Error("unexpected json: ", string(data))
	}

	var q Quaternion
	if err := json.Unmarshal([]byte("[0,0,0.5,1]"), &q); err != nil {
		t.Fatal(err)
	}
	if q != (Quaternion{0, 0, 0.5, 1}) {
		t.Error("unexpected quaternion: ", q)
	}
}

func TestMatrixJSON(t *testing.T) {
	m := NewTranslateMatrix4(1, 2, 3)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[[1,0,0,0],[0,1,0,0],[0,0,1,0],[1,2,3,1]]" {
		t.Error("unexpected json: ", string(data))
	}

	var m2 Matrix4
	if err := json.Unmarshal(data, &m2); err != nil {
		t.Fatal(err)
	}
	if m2 != *m {
		t.Error("m != m2: ", m, m2)
	}
}

func TestWriteBinary(t *testing.T) {
	var buf bytes.Buffer
	v := NewVector3(1, 2, 3)
	if err := v.WriteBinary(&buf, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 12 {
		t.Error("Vector3 should be 12 bytes: ", buf.Len())
	}
	if math.Float32frombits(binary.LittleEndian.Uint32(buf.Bytes()[8:])) != 3 {
		t.Error("unexpected z")
	}

	buf.Reset()
	if err := NewMatrix4().WriteBinary(&buf, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 64 {
		t.Error("Matrix4 should be 64 bytes: ", buf.Len())
	}
}
