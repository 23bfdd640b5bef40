package scene

import (
	"io"
	"os"

	"github.com/binzume/sceneexport/geom"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Document is a scene description loaded from YAML.
type Document struct {
	Title    string
	Objects  []*Object
	Avatar   *Avatar
	Selected []*Object
}

type rotationOrder geom.RotationOrder

func (o *rotationOrder) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	order, ok := geom.ParseRotationOrder(s)
	if !ok {
		return errors.Errorf("unknown rotation order %q", s)
	}
	*o = rotationOrder(order)
	return nil
}

type transformDef struct {
	Position *[3]float32 `yaml:"position"`
	Rotation *[4]float32 `yaml:"rotation"`
	// Euler angles in degrees, used when rotation is not given.
	Euler      *[3]float32   `yaml:"euler"`
	EulerOrder rotationOrder `yaml:"eulerOrder"`
	Scale      *[3]float32   `yaml:"scale"`
}

func (d *transformDef) toTransform() Transform {
	t := IdentityTransform()
	if d.Position != nil {
		t.Position = *geom.NewVector3FromArray(*d.Position)
	}
	if d.Rotation != nil {
		t.Rotation = *geom.NewQuaternionFromArray(*d.Rotation)
	} else if e := d.Euler; e != nil {
		t.Rotation = *geom.NewEulerDegrees(e[0], e[1], e[2], geom.RotationOrder(d.EulerOrder)).ToQuaternion()
	}
	if d.Scale != nil {
		t.Scale = *geom.NewVector3FromArray(*d.Scale)
	}
	return t
}

type textureDef struct {
	ID         string      `yaml:"id"`
	NormalID   string      `yaml:"normal"`
	SpecularID string      `yaml:"specular"`
	Color      *[4]float32 `yaml:"color"`
	TexGen     string      `yaml:"texgen"`
	Rotation   float32     `yaml:"rotation"`
	Offset     [2]float32  `yaml:"offset"`
	Repeat     *[2]float32 `yaml:"repeat"`
}

type faceDef struct {
	Positions [][3]float32 `yaml:"positions"`
	Normals   [][3]float32 `yaml:"normals"`
	Tangents  [][3]float32 `yaml:"tangents"`
	TexCoords [][2]float32 `yaml:"texcoords"`
	Weights   [][4]float32 `yaml:"weights"`
	Indices   []uint16     `yaml:"indices"`
	Texture   textureDef   `yaml:"texture"`
}

type skinDef struct {
	BindShapeMatrix     []float32   `yaml:"bindShapeMatrix"`
	JointNames          []string    `yaml:"jointNames"`
	InverseBindMatrices [][]float32 `yaml:"inverseBindMatrices"`
	JointNumbers        []int       `yaml:"jointNumbers"`
}

type objectDef struct {
	transformDef `yaml:",inline"`
	ID           string        `yaml:"id"`
	LocalID      uint32        `yaml:"localId"`
	Name         string        `yaml:"name"`
	Parent       string        `yaml:"parent"`
	World        *transformDef `yaml:"world"`
	Faces        []faceDef     `yaml:"faces"`
	Skin         *skinDef      `yaml:"skin"`
	Attachment   string        `yaml:"attachment"`
	HUD          bool          `yaml:"hud"`
}

type jointDef struct {
	transformDef     `yaml:",inline"`
	Name             string      `yaml:"name"`
	Kind             string      `yaml:"kind"`
	PositionOverride *[3]float32 `yaml:"positionOverride"`
	ScaleOverride    *[3]float32 `yaml:"scaleOverride"`
	Children         []jointDef  `yaml:"children"`
}

type avatarDef struct {
	transformDef `yaml:",inline"`
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	Skeleton     *jointDef `yaml:"skeleton"`
}

type documentDef struct {
	Title    string      `yaml:"title"`
	Objects  []objectDef `yaml:"objects"`
	Avatar   *avatarDef  `yaml:"avatar"`
	Selected []string    `yaml:"selected"`
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func parseMatrix(a []float32) (geom.Matrix4, error) {
	if len(a) != 16 {
		return geom.Matrix4{}, errors.Errorf("matrix must have 16 elements: %d", len(a))
	}
	return *geom.NewMatrix4FromSlice(a), nil
}

func (d *textureDef) toTextureEntry() (*TextureEntry, error) {
	var err error
	te := &TextureEntry{
		Color:    geom.Vector4{X: 1, Y: 1, Z: 1, W: 1},
		Rotation: d.Rotation,
		OffsetU:  d.Offset[0],
		OffsetV:  d.Offset[1],
		RepeatU:  1,
		RepeatV:  1,
	}
	if te.TextureID, err = parseID(d.ID); err != nil {
		return nil, errors.Wrap(err, "texture id")
	}
	if d.NormalID != "" || d.SpecularID != "" {
		te.Material = &MaterialParams{}
		if te.Material.NormalID, err = parseID(d.NormalID); err != nil {
			return nil, errors.Wrap(err, "normal id")
		}
		if te.Material.SpecularID, err = parseID(d.SpecularID); err != nil {
			return nil, errors.Wrap(err, "specular id")
		}
	}
	if d.Color != nil {
		te.Color = *geom.NewQuaternionFromArray(*d.Color)
	}
	if d.Repeat != nil {
		te.RepeatU, te.RepeatV = d.Repeat[0], d.Repeat[1]
	}
	switch d.TexGen {
	case "", "default":
	case "planar":
		te.TexGen = TexGenPlanar
	default:
		return nil, errors.Errorf("unknown texgen %q", d.TexGen)
	}
	return te, nil
}

func (d *faceDef) toFace() (*Face, error) {
	te, err := d.Texture.toTextureEntry()
	if err != nil {
		return nil, err
	}
	f := &Face{Indices: d.Indices, TE: te}
	for _, v := range d.Positions {
		f.Positions = append(f.Positions, *geom.NewVector3FromArray(v))
	}
	for _, v := range d.Normals {
		f.Normals = append(f.Normals, *geom.NewVector3FromArray(v))
	}
	for _, v := range d.Tangents {
		f.Tangents = append(f.Tangents, *geom.NewVector3FromArray(v))
	}
	for _, v := range d.TexCoords {
		f.TexCoords = append(f.TexCoords, geom.Vector2{X: v[0], Y: v[1]})
	}
	for _, v := range d.Weights {
		f.Weights = append(f.Weights, *geom.NewQuaternionFromArray(v))
	}
	return f, nil
}

func (d *skinDef) toSkinInfo() (*SkinInfo, error) {
	skin := &SkinInfo{JointNames: d.JointNames, JointNumbers: d.JointNumbers, BindShapeMatrix: *geom.NewMatrix4()}
	if d.BindShapeMatrix != nil {
		m, err := parseMatrix(d.BindShapeMatrix)
		if err != nil {
			return nil, errors.Wrap(err, "bindShapeMatrix")
		}
		skin.BindShapeMatrix = m
	}
	for i, a := range d.InverseBindMatrices {
		m, err := parseMatrix(a)
		if err != nil {
			return nil, errors.Wrapf(err, "inverseBindMatrices[%d]", i)
		}
		skin.InverseBindMatrices = append(skin.InverseBindMatrices, m)
	}
	if len(skin.InverseBindMatrices) != len(skin.JointNames) {
		return nil, errors.Errorf("%d joint names but %d inverse bind matrices", len(skin.JointNames), len(skin.InverseBindMatrices))
	}
	return skin, nil
}

func (d *jointDef) toJoint(num *int) (*Joint, error) {
	kind, ok := ParseJointKind(d.Kind)
	if !ok {
		return nil, errors.Errorf("joint %s: unknown kind %q", d.Name, d.Kind)
	}
	t := d.toTransform()
	j := &Joint{Name: d.Name, Num: *num, Kind: kind, Position: t.Position, Rotation: t.Rotation, Scale: t.Scale}
	*num++
	if d.PositionOverride != nil {
		j.PositionOverride = geom.NewVector3FromArray(*d.PositionOverride)
	}
	if d.ScaleOverride != nil {
		j.ScaleOverride = geom.NewVector3FromArray(*d.ScaleOverride)
	}
	for i := range d.Children {
		c, err := d.Children[i].toJoint(num)
		if err != nil {
			return nil, err
		}
		j.AddChild(c)
	}
	return j, nil
}

// worldTransform chains position and rotation. Scale is per object and does not propagate.
func worldTransform(o *Object) Transform {
	var parent *Transform
	if o.Parent != nil {
		parent = &o.Parent.World
	} else if o.IsAttachment() {
		parent = &o.Avatar.World
	}
	if parent == nil {
		return o.Local
	}
	return Transform{
		Position: *parent.Position.Add(parent.Rotation.ApplyTo(&o.Local.Position)),
		Rotation: *parent.Rotation.Mul(&o.Local.Rotation),
		Scale:    o.Local.Scale,
	}
}

// Parse reads a scene description.
func Parse(r io.Reader) (*Document, error) {
	var def documentDef
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return nil, errors.Wrap(err, "decode scene")
	}

	doc := &Document{Title: def.Title}
	if def.Avatar != nil {
		id, err := parseID(def.Avatar.ID)
		if err != nil {
			return nil, errors.Wrap(err, "avatar id")
		}
		doc.Avatar = &Avatar{ID: id, Name: def.Avatar.Name, World: def.Avatar.toTransform()}
		if def.Avatar.Skeleton != nil {
			num := 0
			if doc.Avatar.Root, err = def.Avatar.Skeleton.toJoint(&num); err != nil {
				return nil, errors.Wrap(err, "skeleton")
			}
		}
	}

	byID := map[uuid.UUID]*Object{}
	for i := range def.Objects {
		d := &def.Objects[i]
		id, err := parseID(d.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "object %d id", i)
		}
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, exists := byID[id]; exists {
			return nil, errors.Errorf("duplicate object id %v", id)
		}
		obj := &Object{ID: id, LocalID: d.LocalID, Name: d.Name, Local: d.toTransform(), HUD: d.HUD}
		if obj.LocalID == 0 {
			obj.LocalID = uint32(i + 1)
		}
		for fi := range d.Faces {
			f, err := d.Faces[fi].toFace()
			if err != nil {
				return nil, errors.Wrapf(err, "object %s face %d", d.Name, fi)
			}
			obj.Faces = append(obj.Faces, f)
		}
		if d.Skin != nil {
			if obj.Skin, err = d.Skin.toSkinInfo(); err != nil {
				return nil, errors.Wrapf(err, "object %s skin", d.Name)
			}
		}
		if d.Parent != "" {
			pid, err := parseID(d.Parent)
			if err != nil {
				return nil, errors.Wrapf(err, "object %s parent", d.Name)
			}
			parent, ok := byID[pid]
			if !ok {
				return nil, errors.Errorf("object %s: parent %v must be declared before its children", d.Name, pid)
			}
			obj.Parent = parent
			parent.Children = append(parent.Children, obj)
		}
		if d.Attachment != "" {
			if doc.Avatar == nil {
				return nil, errors.Errorf("object %s: attachment without avatar", d.Name)
			}
			root := obj.Root()
			root.Avatar = doc.Avatar
			root.AttachmentPoint = doc.Avatar.FindJoint(d.Attachment)
			if root.AttachmentPoint == nil {
				return nil, errors.Errorf("object %s: unknown attachment point %q", d.Name, d.Attachment)
			}
			if root == obj {
				doc.Avatar.Attachments = append(doc.Avatar.Attachments, obj)
			}
		}
		if obj.Parent != nil && obj.Parent.Avatar != nil {
			obj.Avatar = obj.Parent.Avatar
		}
		if d.World != nil {
			obj.World = d.World.toTransform()
		} else {
			obj.World = worldTransform(obj)
		}
		byID[id] = obj
		doc.Objects = append(doc.Objects, obj)
	}

	for _, s := range def.Selected {
		id, err := parseID(s)
		if err != nil {
			return nil, errors.Wrap(err, "selected")
		}
		obj, ok := byID[id]
		if !ok {
			return nil, errors.Errorf("selected object %v not found", id)
		}
		doc.Selected = append(doc.Selected, obj)
	}
	return doc, nil
}

func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return doc, nil
}

// ObjectSelection selects the explicitly selected objects, or every object if none are.
// The first root object is the export root.
func (doc *Document) ObjectSelection() *Selection {
	objs := doc.Selected
	if len(objs) == 0 {
		objs = doc.Objects
	}
	sel := &Selection{Title: doc.Title}
	for _, o := range objs {
		if len(o.Faces) == 0 {
			continue
		}
		sel.Entries = append(sel.Entries, Entry{Object: o, Name: o.Name})
	}
	if len(sel.Entries) > 0 {
		root := sel.Entries[0].Object.Root()
		sel.RootWorld = root.World.Matrix()
		if sel.Title == "" {
			sel.Title = root.Name
		}
	}
	return sel
}

// AvatarSelection selects the avatar's non-HUD attachments and their children.
func (doc *Document) AvatarSelection() *Selection {
	av := doc.Avatar
	if av == nil {
		return &Selection{Title: doc.Title}
	}
	sel := &Selection{Title: av.Name, Avatar: av, RootWorld: av.World.Matrix()}
	add := func(o *Object) {
		if len(o.Faces) == 0 {
			return
		}
		name := o.Name
		if name == "" {
			name = "Object"
		}
		sel.Entries = append(sel.Entries, Entry{Object: o, Name: name})
	}
	for _, o := range av.Attachments {
		if o.HUD {
			continue
		}
		add(o)
		for _, c := range o.Children {
			add(c)
		}
	}
	return sel
}
