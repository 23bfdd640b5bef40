// Package scene is a read-only view of the objects, faces and skeletons handed to the exporters.
package scene

import (
	"github.com/binzume/sceneexport/geom"
	"github.com/google/uuid"
)

type TexGen int

const (
	TexGenDefault TexGen = iota
	TexGenPlanar
)

type MaterialParams struct {
	NormalID   uuid.UUID
	SpecularID uuid.UUID
}

// TextureEntry describes the appearance of one face.
type TextureEntry struct {
	TextureID uuid.UUID
	Material  *MaterialParams
	Color     geom.Vector4
	TexGen    TexGen
	Rotation  float32
	OffsetU   float32
	OffsetV   float32
	RepeatU   float32
	RepeatV   float32
}

func (te *TextureEntry) NormalID() uuid.UUID {
	if te.Material == nil {
		return uuid.Nil
	}
	return te.Material.NormalID
}

func (te *TextureEntry) SpecularID() uuid.UUID {
	if te.Material == nil {
		return uuid.Nil
	}
	return te.Material.SpecularID
}

// Face is a run of triangles sharing one TextureEntry.
// Weights use the packed form: joint index in the integer part, influence in the fraction.
type Face struct {
	Positions []geom.Vector3
	Normals   []geom.Vector3
	Tangents  []geom.Vector3
	TexCoords []geom.Vector2
	Weights   []geom.Vector4
	Indices   []uint16
	TE        *TextureEntry
}

func (f *Face) NumVertices() int {
	return len(f.Positions)
}

type Transform struct {
	Position geom.Vector3
	Rotation geom.Quaternion
	Scale    geom.Vector3
}

func IdentityTransform() Transform {
	return Transform{Rotation: geom.IdentityQuaternion, Scale: geom.Vector3{X: 1, Y: 1, Z: 1}}
}

func (t *Transform) Matrix() *geom.Matrix4 {
	return geom.NewTRSMatrix4(&t.Position, &t.Rotation, &t.Scale)
}

type SkinInfo struct {
	BindShapeMatrix     geom.Matrix4
	JointNames          []string
	InverseBindMatrices []geom.Matrix4
	JointNumbers        []int
}

type Object struct {
	ID      uuid.UUID
	LocalID uint32
	Name    string

	Parent   *Object
	Children []*Object

	// Local is relative to Parent, or to the attachment point for attachment roots.
	Local Transform
	World Transform

	Faces []*Face
	Skin  *SkinInfo

	Avatar          *Avatar
	AttachmentPoint *Joint
	HUD             bool
}

func (o *Object) IsRiggedMesh() bool {
	return o.Skin != nil
}

// IsAttachment reports whether the link set o belongs to is worn by an avatar.
func (o *Object) IsAttachment() bool {
	r := o.Root()
	return r.Avatar != nil && r.AttachmentPoint != nil
}

func (o *Object) IsRoot() bool {
	return o.Parent == nil
}

func (o *Object) Root() *Object {
	for o.Parent != nil {
		o = o.Parent
	}
	return o
}

// LinkNumber is 0 for a lone object, 1 for the root of a link set and 2.. for its children.
func (o *Object) LinkNumber() int {
	if o.Parent == nil {
		if len(o.Children) == 0 {
			return 0
		}
		return 1
	}
	for i, c := range o.Parent.Children {
		if c == o {
			return i + 2
		}
	}
	return 0
}

// AttachmentJoint returns the attachment point of the link set o belongs to.
func (o *Object) AttachmentJoint() *Joint {
	return o.Root().AttachmentPoint
}

type Avatar struct {
	ID          uuid.UUID
	Name        string
	World       Transform
	Root        *Joint
	Attachments []*Object
}

func (a *Avatar) FindJoint(name string) *Joint {
	if a.Root == nil {
		return nil
	}
	return a.Root.Find(name)
}

// Entry is an object selected for export together with its display name.
type Entry struct {
	Object *Object
	Name   string
}

type Selection struct {
	Title   string
	Entries []Entry
	Avatar  *Avatar
	// RootWorld is the world matrix of the export root.
	RootWorld *geom.Matrix4
}

func (s *Selection) Objects() []*Object {
	objs := make([]*Object, 0, len(s.Entries))
	for _, e := range s.Entries {
		objs = append(objs, e.Object)
	}
	return objs
}
