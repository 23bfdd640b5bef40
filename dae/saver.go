package dae

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/logger"
	"github.com/binzume/sceneexport/scene"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Saver collects objects and writes them as one COLLADA document.
type Saver struct {
	Options *export.Options
	Policy  export.Policy
	// Avatar provides the skeleton for rigged meshes not worn by an avatar.
	Avatar *scene.Avatar
	// RootWorld is the world matrix of the export root. nil means identity.
	RootWorld *geom.Matrix4
	Now       func() time.Time
	Log       *zap.Logger

	entries  []scene.Entry
	textures []export.TextureInfo
}

func NewSaver(opts *export.Options, policy export.Policy) *Saver {
	if policy == nil {
		policy = export.AllowAll{}
	}
	return &Saver{Options: opts, Policy: policy, Now: time.Now}
}

func (s *Saver) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logger.Named("dae")
}

// NewSaverFromSelection adds every exportable entry of sel.
func NewSaverFromSelection(sel *scene.Selection, opts *export.Options, policy export.Policy) *Saver {
	s := NewSaver(opts, policy)
	s.Avatar = sel.Avatar
	s.RootWorld = sel.RootWorld
	for _, e := range sel.Entries {
		s.Add(e.Object, e.Name)
	}
	return s
}

// Add queues obj for export. It returns false if the policy does not allow it.
func (s *Saver) Add(obj *scene.Object, name string) bool {
	if !s.Policy.CanExportObject(obj) {
		s.logger().Info("object not exportable", zap.String("object", name))
		return false
	}
	s.entries = append(s.entries, scene.Entry{Object: obj, Name: name})
	return true
}

func (s *Saver) Len() int {
	return len(s.entries)
}

func (s *Saver) Entries() []scene.Entry {
	return s.entries
}

// UpdateTextureInfo rebuilds the texture inventory of the queued objects.
func (s *Saver) UpdateTextureInfo() []export.TextureInfo {
	objs := make([]*scene.Object, len(s.entries))
	for i, e := range s.entries {
		objs[i] = e.Object
	}
	s.textures = export.CollectTextures(objs, s.Policy)
	return s.textures
}

func (s *Saver) Textures() []export.TextureInfo {
	return s.textures
}

func (s *Saver) colladaName(textureName string) string {
	return textureName + "_" + s.Options.ImageFormat
}

type builder struct {
	*Saver
	doc      *Collada
	registry *export.Registry
	report   *export.Report
	rootInv  *geom.Matrix4

	skeletonRoot string
	avatarAdded  bool
}

// Build creates the document. Objects that cannot be encoded are left out and listed in the report.
func (s *Saver) Build() (*Collada, *export.Report) {
	b := &builder{
		Saver:    s,
		doc:      &Collada{Version: Version, Asset: s.asset()},
		registry: export.NewRegistry(s.Options),
		report:   &export.Report{},
		rootInv:  geom.NewMatrix4(),
	}
	if s.RootWorld != nil {
		b.rootInv = s.RootWorld.Inverse()
	}
	if s.Options.ExportTextures {
		b.addImages()
	}
	vs := VisualScene{ID: "Scene", Name: "Scene"}
	prim := 0
	for _, e := range s.entries {
		nodes, err := b.addObject(fmt.Sprintf("prim%d", prim), e.Object)
		if err != nil {
			b.report.Fail(e.Name, err)
			continue
		}
		prim++
		vs.Nodes = append(vs.Nodes, nodes...)
		b.report.Success(e.Name)
	}
	b.doc.VisualScenes = []VisualScene{vs}
	b.addEffects()
	for _, m := range b.registry.All() {
		b.doc.Materials = append(b.doc.Materials, Material{
			ID:             m.Name + "-material",
			InstanceEffect: InstanceURL{URL: "#" + m.Name + "-fx"},
		})
	}
	b.doc.Scene.InstanceVisualScene.URL = "#Scene"
	return b.doc, b.report
}

func (s *Saver) asset() Asset {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	date := now().UTC().Format("2006-01-02T15:04:05")
	return Asset{
		Contributor: Contributor{Author: s.Options.Author, AuthoringTool: s.Options.AuthoringTool},
		Created:     date,
		Modified:    date,
		Unit:        Unit{Name: "meter", Meter: 1},
		UpAxis:      "Z_UP",
	}
}

func (b *builder) addImages() {
	for _, t := range b.textures {
		if t.Name == "" {
			continue
		}
		name := b.colladaName(t.Name)
		b.doc.Images = append(b.doc.Images, Image{
			ID:       name,
			Name:     name,
			InitFrom: Escape(t.Name+"."+b.Options.ImageFormat, Unreserved),
		})
	}
}

// skeletonFor returns the avatar whose skeleton a rigged mesh binds to.
func (b *builder) skeletonFor(obj *scene.Object) *scene.Avatar {
	if a := obj.Root().Avatar; a != nil && a.Root != nil {
		return a
	}
	if b.Avatar != nil && b.Avatar.Root != nil {
		return b.Avatar
	}
	return nil
}

func (b *builder) addObject(primID string, obj *scene.Object) ([]Node, error) {
	opts := b.Options
	avatar := b.skeletonFor(obj)
	rigged := opts.ExportRiggedMesh && obj.IsRiggedMesh()
	if rigged && avatar == nil {
		b.logger().Warn("rigged mesh without skeleton, exporting as static geometry", zap.String("prim", primID))
		rigged = false
	}

	mesh, err := export.ExtractMesh(obj, export.ExtractOptions{
		SkipTransparent:    opts.SkipTransparent,
		ApplyTextureParams: opts.ApplyTextureParams,
		ApplyBindShape:     rigged,
	})
	if err != nil {
		return nil, err
	}

	geomID := primID + "-mesh"
	g := Geometry{ID: geomID}
	g.Mesh.Sources = []Source{
		paramSource(geomID+"-positions", mesh.Positions, "XYZ"),
		paramSource(geomID+"-normals", mesh.Normals, "XYZ"),
		paramSource(geomID+"-map0", mesh.UVs, "ST"),
	}
	g.Mesh.Vertices = Vertices{
		ID:     geomID + "-vertices",
		Inputs: []InputLocal{{Semantic: "POSITION", Source: "#" + geomID + "-positions"}},
	}

	mats := b.registry.ForObject(obj)
	if opts.ConsolidateMaterials {
		for i := range mats {
			faces := b.registry.FacesWithMaterial(obj, &mats[i])
			if len(faces) == 0 {
				continue
			}
			g.Mesh.Polylists = append(g.Mesh.Polylists, polylist(geomID, mats[i].Name, mesh, faces))
		}
	} else {
		for i, f := range mesh.Faces {
			g.Mesh.Polylists = append(g.Mesh.Polylists, polylist(geomID, mats[i].Name, mesh, []int{f.Index}))
		}
	}
	b.doc.Geometries = append(b.doc.Geometries, g)

	node := Node{ID: primID, Name: primID, Type: "NODE"}
	bind := bindMaterial(mats)
	var nodes []Node
	if rigged {
		var avatarNode *Node
		if !b.avatarAdded {
			n := avatarNodes(avatar.Root)
			avatarNode = &n
			b.skeletonRoot = avatar.Root.Name
			b.avatarAdded = true
		}
		ctrlID := primID + "-skin"
		b.doc.Controllers = append(b.doc.Controllers, controller(ctrlID, geomID, obj.Skin, mesh))
		node.InstanceController = &InstanceController{
			URL:          "#" + ctrlID,
			Skeletons:    []string{"#" + b.skeletonRoot},
			BindMaterial: bind,
		}
		node.Matrix = &Matrix{Values: matrixValues(geom.NewMatrix4())}
		nodes = append(nodes, node)
		if avatarNode != nil {
			nodes = append(nodes, *avatarNode)
		}
	} else {
		node.InstanceGeometry = &InstanceGeometry{URL: "#" + geomID, BindMaterial: bind}
		node.Matrix = &Matrix{Values: matrixValues(b.nodeMatrix(obj))}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (b *builder) nodeMatrix(obj *scene.Object) *geom.Matrix4 {
	if obj.IsAttachment() {
		return export.AttachmentJointMatrix(obj.AttachmentJoint()).Mul(export.RelativeMatrix(nil, obj))
	}
	w := &obj.World
	return b.rootInv.Mul(geom.NewTRSMatrix4(&w.Position, &w.Rotation, &obj.Local.Scale))
}

func bindMaterial(mats []export.MaterialInfo) *BindMaterial {
	if len(mats) == 0 {
		return nil
	}
	bm := &BindMaterial{}
	for _, m := range mats {
		name := m.Name + "-material"
		bm.Materials = append(bm.Materials, InstanceMaterial{Symbol: name, Target: "#" + name})
	}
	return bm
}

// matrixValues writes m row by row.
func matrixValues(m *geom.Matrix4) FloatList {
	t := m.Transposed()
	return FloatList(t[:])
}

// paramSource makes a float source with one float param per character of params.
func paramSource(id string, values []float32, params string) Source {
	src := Source{
		ID:         id,
		FloatArray: &FloatArray{ID: id + "-array", Count: len(values), Values: values},
		Accessor:   Accessor{Source: "#" + id + "-array", Count: len(values) / len(params), Stride: len(params)},
	}
	for _, p := range params {
		src.Accessor.Params = append(src.Accessor.Params, Param{Name: string(p), Type: "float"})
	}
	return src
}

func floatSource(id, param string, values []float32) Source {
	return Source{
		ID:         id,
		FloatArray: &FloatArray{ID: id + "-array", Count: len(values), Values: values},
		Accessor: Accessor{Source: "#" + id + "-array", Count: len(values), Stride: 1,
			Params: []Param{{Name: param, Type: "float"}}},
	}
}

func nameSource(id, param string, values []string) Source {
	return Source{
		ID:        id,
		NameArray: &NameArray{ID: id + "-array", Count: len(values), Values: values},
		Accessor: Accessor{Source: "#" + id + "-array", Count: len(values), Stride: 1,
			Params: []Param{{Name: param, Type: "name"}}},
	}
}

func matrixSource(id, param string, values []geom.Matrix4) Source {
	var data FloatList
	for i := range values {
		data = append(data, matrixValues(&values[i])...)
	}
	return Source{
		ID:         id,
		FloatArray: &FloatArray{ID: id + "-array", Count: len(data), Values: data},
		Accessor: Accessor{Source: "#" + id + "-array", Count: len(values), Stride: 16,
			Params: []Param{{Name: param, Type: "float4x4"}}},
	}
}

func polylist(geomID, material string, mesh *export.Mesh, faces []int) Polylist {
	pl := Polylist{
		Material: material + "-material",
		Inputs: []InputShared{
			{Semantic: "VERTEX", Source: "#" + geomID + "-vertices"},
			{Semantic: "NORMAL", Source: "#" + geomID + "-normals"},
			{Semantic: "TEXCOORD", Source: "#" + geomID + "-map0"},
		},
	}
	for _, idx := range mesh.Triangles(faces) {
		pl.P = append(pl.P, int(idx))
	}
	pl.Count = len(pl.P) / 3
	for i := 0; i < pl.Count; i++ {
		pl.VCount = append(pl.VCount, 3)
	}
	return pl
}

func controller(id, geomID string, skin *scene.SkinInfo, mesh *export.Mesh) Controller {
	jointsID, posesID, weightsID := id+"-joints", id+"-bind_poses", id+"-weights"
	s := Skin{
		Source: "#" + geomID,
		// vertices are already in bind shape space
		BindShapeMatrix: matrixValues(geom.NewMatrix4()),
		Sources: []Source{
			nameSource(jointsID, "JOINT", skin.JointNames),
			matrixSource(posesID, "TRANSFORM", skin.InverseBindMatrices),
		},
		Joints: Joints{Inputs: []InputLocal{
			{Semantic: "JOINT", Source: "#" + jointsID},
			{Semantic: "INV_BIND_MATRIX", Source: "#" + posesID},
		}},
	}

	vw := VertexWeights{Inputs: []InputShared{
		{Semantic: "JOINT", Source: "#" + jointsID, Offset: 0},
		{Semantic: "WEIGHT", Source: "#" + weightsID, Offset: 1},
	}}
	var weights []float32
	for _, f := range mesh.Faces {
		for i := range f.Positions {
			n := 0
			if i < len(f.Weights) {
				for _, in := range export.Influences(f.Weights[i]) {
					vw.V = append(vw.V, in.Joint, len(weights))
					weights = append(weights, in.Weight)
					n++
				}
			}
			vw.VCount = append(vw.VCount, n)
		}
	}
	vw.Count = len(vw.VCount)
	s.Sources = append(s.Sources, floatSource(weightsID, "WEIGHT", weights))
	s.VertexWeights = vw
	return Controller{ID: id, Skin: s}
}

// avatarNodes returns the "Avatar" node holding the joint hierarchy.
func avatarNodes(root *scene.Joint) Node {
	recs := export.WalkSkeleton(root, export.RotationCollisionVolumesOnly)
	byJoint := make(map[*scene.Joint]*export.JointRecord, len(recs))
	for i := range recs {
		byJoint[recs[i].Joint] = &recs[i]
	}
	var build func(j *scene.Joint) Node
	build = func(j *scene.Joint) Node {
		r := byJoint[j]
		// scale is relative to the parent's local scale
		scale := r.Scale
		if r.HasParent() {
			scale = *scale.ScaledVec(recs[r.ParentOrdinal].Scale.Reciprocal())
		}
		n := Node{
			ID: r.Name, SID: r.Name, Name: r.Name, Type: "JOINT",
			Matrix: &Matrix{SID: "transform", Values: matrixValues(geom.NewTRSMatrix4(&r.Position, &r.Rotation, &scale))},
		}
		for _, c := range j.Children {
			n.Nodes = append(n.Nodes, build(c))
		}
		return n
	}
	return Node{ID: "Avatar", Name: "Avatar", Type: "NODE", Nodes: []Node{build(root)}}
}

func (b *builder) addEffects() {
	for _, m := range b.registry.All() {
		e := Effect{ID: m.Name + "-fx"}
		var name string
		if b.Options.ExportTextures && m.ColorID != uuid.Nil {
			if t := export.TextureName(b.textures, m.ColorID); t != "" {
				name = b.colladaName(t)
			}
		}
		e.Profile.Technique.SID = "common"
		phong := &e.Profile.Technique.Phong
		if name != "" {
			e.Profile.NewParams = []NewParam{
				{SID: name + "-surface", Surface: &Surface{Type: "2D", InitFrom: name}},
				{SID: name + "-sampler", Sampler2D: &Sampler2D{Source: name + "-surface"}},
			}
			phong.Diffuse.Texture = &Texture{Texture: name + "-sampler", Texcoord: name}
		} else {
			c := m.Color
			phong.Diffuse.Color = &Color{SID: "diffuse", Value: fmt.Sprintf("%f %f %f %f", c.X, c.Y, c.Z, c.W)}
			phong.Transparency = &FloatParam{Float: fmt.Sprintf("%f", c.W)}
		}
		b.doc.Effects = append(b.doc.Effects, e)
	}
}

// Write encodes the document to w.
func (s *Saver) Write(w io.Writer) (*export.Report, error) {
	doc, report := s.Build()
	buf, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return report, errors.Wrap(err, "encode collada")
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return report, err
	}
	if _, err := w.Write(buf); err != nil {
		return report, err
	}
	_, err = io.WriteString(w, "\n")
	return report, err
}

// Save writes the document to path. Nothing is left at path if writing fails.
func (s *Saver) Save(path string) (*export.Report, error) {
	if path == "" {
		return nil, export.ErrNoFilename
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	tmp := f.Name()
	report, err := s.Write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return report, errors.Wrapf(err, "save %s", path)
	}
	s.logger().Info("saved collada", zap.String("uri", EscapeFilename(path)), zap.Stringer("report", report))
	return report, nil
}
