// Package slxp builds SLXP scene documents and writes them as binary or JSON.
//
// Binary layout (all numbers in host byte order, lengths are uint64):
//
//	"SLXP" 0 0 1, Title, Objects, Joints
//	Object: Name, Position(3f) Rotation(4f) Scale(3f), Faces,
//	        Id, ParentId (uint32), hasAttachment (uint8) [AttachmentJointId (uint32)], LinkNumber (uint32),
//	        hasBindShape (uint8) [BindShapeMatrix(16f)], InverseBindMatrices, JointNumbers (int32)
//	Joint:  Name, Position Rotation Scale, Id, hasParent (uint8) [ParentId (uint32)]
//
// Joint ids are preorder ordinals. AttachmentJointId and JointNumbers refer to them.
//	Face:   Positions(3f) Normals(3f) Tangents(3f) TexCoords(2f) Weights(4f) Indices(uint16)
package slxp

import (
	"encoding/json"

	"github.com/binzume/sceneexport/geom"
)

// Serializable is implemented by every record of a document.
type Serializable interface {
	WriteBinary(w *Writer) error
	json.Marshaler
}

type Face struct {
	Positions []geom.Vector3
	Normals   []geom.Vector3
	Tangents  []geom.Vector3
	TexCoords []geom.Vector2
	// Weights pack the joint index in the integer part and the weight in the fraction.
	Weights []geom.Vector4 `json:",omitempty"`
	Indices []uint16
}

func (f *Face) WriteBinary(w *Writer) error {
	w.writeSlice(len(f.Positions), f.Positions)
	w.writeSlice(len(f.Normals), f.Normals)
	w.writeSlice(len(f.Tangents), f.Tangents)
	w.writeSlice(len(f.TexCoords), f.TexCoords)
	w.writeSlice(len(f.Weights), f.Weights)
	w.writeSlice(len(f.Indices), f.Indices)
	return w.Err()
}

func (f *Face) readBinary(r *Reader) {
	f.Positions = readSlice[geom.Vector3](r)
	f.Normals = readSlice[geom.Vector3](r)
	f.Tangents = readSlice[geom.Vector3](r)
	f.TexCoords = readSlice[geom.Vector2](r)
	f.Weights = readSlice[geom.Vector4](r)
	f.Indices = readSlice[uint16](r)
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// MarshalJSON writes empty arrays as [] rather than null.
func (f Face) MarshalJSON() ([]byte, error) {
	type face Face
	f.Positions = emptyIfNil(f.Positions)
	f.Normals = emptyIfNil(f.Normals)
	f.Tangents = emptyIfNil(f.Tangents)
	f.TexCoords = emptyIfNil(f.TexCoords)
	f.Indices = emptyIfNil(f.Indices)
	return json.Marshal(face(f))
}

// TRS is a local transform.
type TRS struct {
	LocalPosition geom.Vector3
	LocalRotation geom.Quaternion
	LocalScale    geom.Vector3
}

func (t *TRS) writeBinary(w *Writer) {
	w.writeVector3(&t.LocalPosition)
	w.writeVector4(&t.LocalRotation)
	w.writeVector3(&t.LocalScale)
}

func (t *TRS) readBinary(r *Reader) {
	r.readVector3(&t.LocalPosition)
	r.readVector4(&t.LocalRotation)
	r.readVector3(&t.LocalScale)
}

type Object struct {
	Name     string
	Id       uint32
	ParentId uint32
	TRS
	// Skin data, set for rigged meshes only.
	BindShapeMatrix     *geom.Matrix4  `json:",omitempty"`
	InverseBindMatrices []geom.Matrix4 `json:",omitempty"`
	JointNumbers        []int32        `json:",omitempty"`
	// AttachmentJointId is nil unless the object is worn.
	AttachmentJointId *uint32 `json:",omitempty"`
	LinkNumber        uint32
	Faces             []*Face
}

func (o *Object) HasBindShapeMatrix() bool {
	return o.BindShapeMatrix != nil
}

func (o *Object) WriteBinary(w *Writer) error {
	w.writeString(o.Name)
	o.TRS.writeBinary(w)
	w.writeLength(len(o.Faces))
	for _, f := range o.Faces {
		if err := f.WriteBinary(w); err != nil {
			return err
		}
	}
	w.writeUint32(o.Id)
	w.writeUint32(o.ParentId)
	w.writeOptionalUint32(o.AttachmentJointId)
	w.writeUint32(o.LinkNumber)
	if o.BindShapeMatrix != nil {
		w.writeUint8(1)
		w.writeMatrix(o.BindShapeMatrix)
	} else {
		w.writeUint8(0)
	}
	w.writeSlice(len(o.InverseBindMatrices), o.InverseBindMatrices)
	w.writeSlice(len(o.JointNumbers), o.JointNumbers)
	return w.Err()
}

func (o *Object) readBinary(r *Reader) {
	o.Name = r.readString()
	o.TRS.readBinary(r)
	n := r.readLength()
	for i := 0; i < n && r.err == nil; i++ {
		f := &Face{}
		f.readBinary(r)
		o.Faces = append(o.Faces, f)
	}
	o.Id = r.readUint32()
	o.ParentId = r.readUint32()
	o.AttachmentJointId = r.readOptionalUint32()
	o.LinkNumber = r.readUint32()
	if r.readUint8() != 0 {
		o.BindShapeMatrix = &geom.Matrix4{}
		r.readMatrix(o.BindShapeMatrix)
	}
	o.InverseBindMatrices = readSlice[geom.Matrix4](r)
	o.JointNumbers = readSlice[int32](r)
}

func (o Object) MarshalJSON() ([]byte, error) {
	type object Object
	o.Faces = emptyIfNil(o.Faces)
	return json.Marshal(object(o))
}

type Joint struct {
	Name string
	Id   uint32
	// ParentId is nil for the root.
	ParentId *uint32 `json:",omitempty"`
	TRS
}

func (j *Joint) WriteBinary(w *Writer) error {
	w.writeString(j.Name)
	j.TRS.writeBinary(w)
	w.writeUint32(j.Id)
	w.writeOptionalUint32(j.ParentId)
	return w.Err()
}

func (j *Joint) readBinary(r *Reader) {
	j.Name = r.readString()
	j.TRS.readBinary(r)
	j.Id = r.readUint32()
	j.ParentId = r.readOptionalUint32()
}

func (j Joint) MarshalJSON() ([]byte, error) {
	type joint Joint
	return json.Marshal(joint(j))
}

type Collection struct {
	Objects []*Object
	Joints  []*Joint
}

func (c *Collection) WriteBinary(w *Writer) error {
	w.writeLength(len(c.Objects))
	for _, o := range c.Objects {
		if err := o.WriteBinary(w); err != nil {
			return err
		}
	}
	w.writeLength(len(c.Joints))
	for _, j := range c.Joints {
		if err := j.WriteBinary(w); err != nil {
			return err
		}
	}
	return w.Err()
}

func (c *Collection) readBinary(r *Reader) {
	n := r.readLength()
	for i := 0; i < n && r.err == nil; i++ {
		o := &Object{}
		o.readBinary(r)
		c.Objects = append(c.Objects, o)
	}
	n = r.readLength()
	for i := 0; i < n && r.err == nil; i++ {
		j := &Joint{}
		j.readBinary(r)
		c.Joints = append(c.Joints, j)
	}
}

func (c Collection) MarshalJSON() ([]byte, error) {
	type collection Collection
	c.Objects = emptyIfNil(c.Objects)
	c.Joints = emptyIfNil(c.Joints)
	return json.Marshal(collection(c))
}

// Document is one SLXP export. It is written once and not modified afterwards.
type Document struct {
	Title      string
	Collection Collection
}

func (d *Document) WriteBinary(w *Writer) error {
	w.write(Magic)
	w.write(Version)
	w.writeString(d.Title)
	return d.Collection.WriteBinary(w)
}

func (d Document) MarshalJSON() ([]byte, error) {
	type document Document
	return json.Marshal(document(d))
}

var (
	_ Serializable = (*Face)(nil)
	_ Serializable = (*Object)(nil)
	_ Serializable = (*Joint)(nil)
	_ Serializable = (*Collection)(nil)
	_ Serializable = (*Document)(nil)
)
