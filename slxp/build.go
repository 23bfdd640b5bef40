package slxp

import (
	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/logger"
	"github.com/binzume/sceneexport/scene"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Builder converts selected objects into a Document.
type Builder struct {
	Options *export.Options
	Policy  export.Policy
	Title   string
	// Avatar supplies joints and joint numbers. Objects worn by another avatar use their own.
	Avatar *scene.Avatar
	Log    *zap.Logger

	entries  []scene.Entry
	ordinals map[*scene.Joint]map[*scene.Joint]int
}

func NewBuilder(opts *export.Options, policy export.Policy) *Builder {
	if policy == nil {
		policy = export.AllowAll{}
	}
	return &Builder{Options: opts, Policy: policy}
}

func NewBuilderFromSelection(sel *scene.Selection, opts *export.Options, policy export.Policy) *Builder {
	b := NewBuilder(opts, policy)
	b.Title = sel.Title
	b.Avatar = sel.Avatar
	for _, e := range sel.Entries {
		b.Add(e.Object, e.Name)
	}
	return b
}

func (b *Builder) logger() *zap.Logger {
	if b.Log != nil {
		return b.Log
	}
	return logger.Named("slxp")
}

// Add queues obj for export. It returns false if the policy does not allow it.
func (b *Builder) Add(obj *scene.Object, name string) bool {
	if !b.Policy.CanExportObject(obj) {
		b.logger().Info("object not exportable", zap.String("object", name))
		return false
	}
	b.entries = append(b.entries, scene.Entry{Object: obj, Name: name})
	return true
}

func (b *Builder) Len() int {
	return len(b.entries)
}

func (b *Builder) Entries() []scene.Entry {
	return b.entries
}

// Rename replaces the display name of every entry for obj.
func (b *Builder) Rename(obj *scene.Object, name string) {
	for i := range b.entries {
		if b.entries[i].Object == obj {
			b.entries[i].Name = name
		}
	}
}

func (b *Builder) avatarFor(obj *scene.Object) *scene.Avatar {
	if av := obj.Root().Avatar; av != nil && av.Root != nil {
		return av
	}
	if b.Avatar != nil && b.Avatar.Root != nil {
		return b.Avatar
	}
	return nil
}

// ordinal returns j's position in the preorder walk of its skeleton, the id it is exported with.
func (b *Builder) ordinal(j *scene.Joint) (int, bool) {
	root := j.Root()
	m, ok := b.ordinals[root]
	if !ok {
		m = map[*scene.Joint]int{}
		for _, r := range export.WalkSkeleton(root, export.RotationNever) {
			m[r.Joint] = r.Ordinal
		}
		if b.ordinals == nil {
			b.ordinals = map[*scene.Joint]map[*scene.Joint]int{}
		}
		b.ordinals[root] = m
	}
	n, ok := m[j]
	return n, ok
}

func (b *Builder) rigged(obj *scene.Object) bool {
	return b.Options.ExportRiggedMesh && obj.IsRiggedMesh()
}

// Build encodes every entry. Objects that fail are listed in the report and left out.
func (b *Builder) Build() (*Document, *export.Report) {
	doc := &Document{Title: b.Title}
	report := &export.Report{}
	for _, e := range b.entries {
		o, err := b.object(e.Object, e.Name)
		if err != nil {
			report.Fail(e.Name, err)
			continue
		}
		doc.Collection.Objects = append(doc.Collection.Objects, o)
		report.Success(e.Name)
	}
	if b.Avatar != nil {
		doc.Collection.Joints = joints(b.Avatar.Root)
	}
	return doc, report
}

func (b *Builder) object(obj *scene.Object, name string) (*Object, error) {
	o := &Object{
		Name: name,
		Id:   obj.LocalID,
		TRS: TRS{
			LocalPosition: obj.Local.Position,
			LocalRotation: obj.Local.Rotation,
			LocalScale:    obj.Local.Scale,
		},
		LinkNumber: uint32(obj.LinkNumber()),
	}
	if obj.Parent != nil {
		o.ParentId = obj.Parent.LocalID
	}
	if j := obj.AttachmentJoint(); j != nil {
		if n, ok := b.ordinal(j); ok {
			id := uint32(n)
			o.AttachmentJointId = &id
		}
	}

	rigged := b.rigged(obj)
	if rigged {
		if err := b.skin(o, obj); err != nil {
			return nil, err
		}
	}

	mesh, err := export.ExtractMesh(obj, export.ExtractOptions{SkipTransparent: b.Options.SkipTransparent})
	if err != nil {
		return nil, err
	}
	for _, f := range mesh.Faces {
		face := &Face{
			Positions: f.Positions,
			Normals:   f.Normals,
			Tangents:  f.Tangents,
			TexCoords: f.UVs,
			Indices:   f.Indices,
		}
		if rigged {
			face.Weights = f.Weights
		}
		o.Faces = append(o.Faces, face)
	}
	return o, nil
}

func (b *Builder) skin(o *Object, obj *scene.Object) error {
	skin := obj.Skin
	if len(skin.InverseBindMatrices) != len(skin.JointNames) {
		return errors.Errorf("skin has %d joints and %d inverse bind matrices", len(skin.JointNames), len(skin.InverseBindMatrices))
	}
	bindShape := skin.BindShapeMatrix
	o.BindShapeMatrix = &bindShape
	o.InverseBindMatrices = append([]geom.Matrix4(nil), skin.InverseBindMatrices...)

	if len(skin.JointNumbers) > 0 {
		for _, n := range skin.JointNumbers {
			o.JointNumbers = append(o.JointNumbers, int32(n))
		}
		return nil
	}
	av := b.avatarFor(obj)
	if av == nil {
		return nil
	}
	for _, name := range skin.JointNames {
		num := int32(-1)
		if j := av.FindJoint(name); j != nil {
			if n, ok := b.ordinal(j); ok {
				num = int32(n)
			}
		}
		o.JointNumbers = append(o.JointNumbers, num)
	}
	return nil
}

// joints lists the skeleton in preorder. The root has no ParentId.
func joints(root *scene.Joint) []*Joint {
	var ret []*Joint
	for _, r := range export.WalkSkeleton(root, export.RotationAlways) {
		j := &Joint{
			Name: r.Name,
			Id:   uint32(r.Ordinal),
			TRS: TRS{
				LocalPosition: r.Position,
				LocalRotation: r.Rotation,
				LocalScale:    r.Scale,
			},
		}
		if r.HasParent() {
			parent := uint32(r.ParentOrdinal)
			j.ParentId = &parent
		}
		ret = append(ret, j)
	}
	return ret
}
