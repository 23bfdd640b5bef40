// Package gltfexport writes the selection as glTF 2.0 with the same geometry, materials and skeleton
// as the other exporters.
package gltfexport

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/logger"
	"github.com/binzume/sceneexport/scene"
	"github.com/binzume/sceneexport/texture"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"
)

// Z up to Y up.
var upAxisRotation = [4]float32{-0.70710678, 0, 0, 0.70710678}

type Converter struct {
	Options *export.Options
	Policy  export.Policy
	Avatar  *scene.Avatar
	// Cache provides textures to embed. Materials stay untextured without it.
	Cache texture.Cache
	Log   *zap.Logger

	*gltf.Document
	registry   *export.Registry
	report     *export.Report
	textures   []export.TextureInfo
	rootNode   uint32
	materials  map[string]uint32
	images     map[uuid.UUID]*uint32
	jointNodes map[string]uint32
	skeleton   *scene.Avatar
}

func NewConverter(opts *export.Options, policy export.Policy) *Converter {
	if policy == nil {
		policy = export.AllowAll{}
	}
	return &Converter{Options: opts, Policy: policy}
}

func (c *Converter) logger() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logger.Named("gltf")
}

func (c *Converter) addMatrices(mat []geom.Matrix4) uint32 {
	a := make([][4]float32, len(mat)*4)
	for i := range mat {
		rows := mat[i].Rows4x4()
		copy(a[i*4:], rows[:])
	}
	acc := modeler.WriteTangent(c.Document, a)
	c.Accessors[acc].Type = gltf.AccessorMat4
	c.Accessors[acc].Count /= 4
	c.BufferViews[*c.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

// Convert builds a document from the selected objects. Objects that fail are listed in the report.
func (c *Converter) Convert(ctx context.Context, sel *scene.Selection) (*gltf.Document, *export.Report) {
	c.Document = gltf.NewDocument()
	c.Document.Asset.Generator = c.Options.AuthoringTool
	c.registry = export.NewRegistry(c.Options)
	c.report = &export.Report{}
	c.materials = map[string]uint32{}
	c.images = map[uuid.UUID]*uint32{}
	c.jointNodes = nil
	c.skeleton = nil
	if c.Avatar == nil {
		c.Avatar = sel.Avatar
	}

	var entries []scene.Entry
	for _, e := range sel.Entries {
		if !c.Policy.CanExportObject(e.Object) {
			c.logger().Info("object not exportable", zap.String("object", e.Name))
			continue
		}
		entries = append(entries, e)
	}
	if c.Options.ExportTextures && c.Cache != nil {
		objs := make([]*scene.Object, len(entries))
		for i, e := range entries {
			objs[i] = e.Object
		}
		c.textures = export.CollectTextures(objs, c.Policy)
	}

	root := &gltf.Node{Name: sel.Title}
	if sel.RootWorld != nil {
		root.Matrix = [16]float32(*upAxisMatrix().Mul(sel.RootWorld.Inverse()))
	} else {
		root.Rotation = upAxisRotation
	}
	c.rootNode = uint32(len(c.Nodes))
	c.Nodes = append(c.Nodes, root)
	c.Scenes[0].Nodes = append(c.Scenes[0].Nodes, c.rootNode)

	for _, e := range entries {
		if err := c.convertObject(ctx, e); err != nil {
			c.report.Fail(e.Name, err)
			continue
		}
		c.report.Success(e.Name)
	}
	if len(c.Textures) > 0 {
		c.Samplers = []*gltf.Sampler{{}}
	}
	return c.Document, c.report
}

func upAxisMatrix() *geom.Matrix4 {
	q := geom.NewQuaternionFromArray(upAxisRotation)
	return geom.NewRotationMatrix4FromQuaternion(q)
}

func (c *Converter) skeletonFor(obj *scene.Object) *scene.Avatar {
	if a := obj.Root().Avatar; a != nil && a.Root != nil {
		return a
	}
	if c.Avatar != nil && c.Avatar.Root != nil {
		return c.Avatar
	}
	return nil
}

// addJointNodes adds the skeleton under the root node once.
func (c *Converter) addJointNodes(av *scene.Avatar) map[string]uint32 {
	if c.jointNodes != nil {
		return c.jointNodes
	}
	c.skeleton = av
	c.jointNodes = map[string]uint32{}
	recs := export.WalkSkeleton(av.Root, export.RotationAlways)
	base := uint32(len(c.Nodes))
	for _, r := range recs {
		c.jointNodes[r.Name] = base + uint32(r.Ordinal)
		c.Nodes = append(c.Nodes, &gltf.Node{
			Name:        r.Name,
			Translation: [3]float32{r.Position.X, r.Position.Y, r.Position.Z},
			Rotation:    [4]float32{r.Rotation.X, r.Rotation.Y, r.Rotation.Z, r.Rotation.W},
			Scale:       [3]float32{r.Scale.X, r.Scale.Y, r.Scale.Z},
		})
	}
	for _, r := range recs {
		parent := c.rootNode
		if r.HasParent() {
			parent = base + uint32(r.ParentOrdinal)
		}
		c.Nodes[parent].Children = append(c.Nodes[parent].Children, base+uint32(r.Ordinal))
	}
	return c.jointNodes
}

func (c *Converter) convertObject(ctx context.Context, e scene.Entry) error {
	obj := e.Object
	avatar := c.skeletonFor(obj)
	rigged := c.Options.ExportRiggedMesh && obj.IsRiggedMesh()
	if rigged && avatar == nil {
		c.logger().Warn("rigged mesh without skeleton, exporting as static geometry", zap.String("object", e.Name))
		rigged = false
	}
	if rigged && c.skeleton != nil && c.skeleton != avatar {
		return errors.New("rigged meshes bound to different skeletons")
	}

	mesh, err := export.ExtractMesh(obj, export.ExtractOptions{
		SkipTransparent:    c.Options.SkipTransparent,
		ApplyTextureParams: c.Options.ApplyTextureParams,
		ApplyBindShape:     rigged,
	})
	if err != nil {
		return err
	}
	node := &gltf.Node{Name: e.Name}
	if mesh.NumVertices() == 0 {
		c.addNode(node, obj)
		return nil
	}

	if rigged {
		if err := checkSkin(obj.Skin, avatar); err != nil {
			return err
		}
	}

	// Materials first: accessors are only written once nothing else can fail.
	type primitive struct {
		material uint32
		indices  []uint32
	}
	var prims []primitive
	mats := c.registry.ForObject(obj)
	plan := func(mat *export.MaterialInfo, faces []int) error {
		indices := mesh.Triangles(faces)
		if len(indices) == 0 {
			return nil
		}
		idx, err := c.material(ctx, mat)
		if err != nil {
			return err
		}
		prims = append(prims, primitive{material: idx, indices: indices})
		return nil
	}
	if c.Options.ConsolidateMaterials {
		for i := range mats {
			if err := plan(&mats[i], c.registry.FacesWithMaterial(obj, &mats[i])); err != nil {
				return err
			}
		}
	} else {
		for i, f := range mesh.Faces {
			if err := plan(&mats[i], []int{f.Index}); err != nil {
				return err
			}
		}
	}

	var skinJoints []uint32
	if rigged {
		joints := c.addJointNodes(avatar)
		for _, name := range obj.Skin.JointNames {
			skinJoints = append(skinJoints, joints[name])
		}
	}

	attributes := map[string]uint32{
		"POSITION":   modeler.WritePosition(c.Document, toArray3(mesh.Positions)),
		"NORMAL":     modeler.WriteNormal(c.Document, toArray3(mesh.Normals)),
		"TEXCOORD_0": modeler.WriteTextureCoord(c.Document, flipV(mesh.UVs)),
	}
	if rigged {
		joints, weights := vertexWeights(mesh)
		attributes["JOINTS_0"] = modeler.WriteJoints(c.Document, joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(c.Document, weights)
	}

	gm := &gltf.Mesh{Name: e.Name}
	for _, p := range prims {
		gm.Primitives = append(gm.Primitives, &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(c.Document, p.indices)),
			Attributes: attributes,
			Material:   gltf.Index(p.material),
		})
	}

	node.Mesh = gltf.Index(uint32(len(c.Meshes)))
	c.Meshes = append(c.Meshes, gm)
	if rigged {
		c.Skins = append(c.Skins, &gltf.Skin{
			Name:                e.Name,
			Joints:              skinJoints,
			Skeleton:            gltf.Index(c.jointNodes[avatar.Root.Name]),
			InverseBindMatrices: gltf.Index(c.addMatrices(obj.Skin.InverseBindMatrices)),
		})
		node.Skin = gltf.Index(uint32(len(c.Skins) - 1))
		c.Nodes = append(c.Nodes, node)
		c.Nodes[c.rootNode].Children = append(c.Nodes[c.rootNode].Children, uint32(len(c.Nodes)-1))
		return nil
	}
	c.addNode(node, obj)
	return nil
}

// checkSkin verifies that every joint the skin names exists in av's skeleton.
func checkSkin(skin *scene.SkinInfo, av *scene.Avatar) error {
	for _, name := range skin.JointNames {
		if av.FindJoint(name) == nil {
			return errors.Errorf("joint %q not in skeleton", name)
		}
	}
	if len(skin.InverseBindMatrices) != len(skin.JointNames) {
		return errors.Errorf("skin has %d joints and %d inverse bind matrices", len(skin.JointNames), len(skin.InverseBindMatrices))
	}
	return nil
}

// addNode places a static object under the root node.
func (c *Converter) addNode(node *gltf.Node, obj *scene.Object) {
	var m *geom.Matrix4
	if obj.IsAttachment() {
		m = export.AttachmentJointMatrix(obj.AttachmentJoint()).Mul(export.RelativeMatrix(nil, obj))
	} else {
		w := &obj.World
		m = geom.NewTRSMatrix4(&w.Position, &w.Rotation, &obj.Local.Scale)
	}
	if *m != *geom.NewMatrix4() {
		node.Matrix = [16]float32(*m)
	}
	c.Nodes = append(c.Nodes, node)
	c.Nodes[c.rootNode].Children = append(c.Nodes[c.rootNode].Children, uint32(len(c.Nodes)-1))
}

func toArray3(a []float32) [][3]float32 {
	ret := make([][3]float32, len(a)/3)
	for i := range ret {
		ret[i] = [3]float32{a[i*3], a[i*3+1], a[i*3+2]}
	}
	return ret
}

// flipV converts to a top-left texture origin.
func flipV(a []float32) [][2]float32 {
	ret := make([][2]float32, len(a)/2)
	for i := range ret {
		ret[i] = [2]float32{a[i*2], 1 - a[i*2+1]}
	}
	return ret
}

// vertexWeights keeps up to four influences per vertex, normalized to sum 1.
func vertexWeights(mesh *export.Mesh) ([][4]uint16, [][4]float32) {
	joints := make([][4]uint16, 0, mesh.NumVertices())
	weights := make([][4]float32, 0, mesh.NumVertices())
	for _, f := range mesh.Faces {
		for i := range f.Positions {
			var j [4]uint16
			var w [4]float32
			if i < len(f.Weights) {
				var sum float32
				for k, in := range export.Influences(f.Weights[i]) {
					if k >= 4 {
						break
					}
					j[k], w[k] = uint16(in.Joint), in.Weight
					sum += in.Weight
				}
				if sum > 0 {
					for k := range w {
						w[k] /= sum
					}
				}
			}
			if w == [4]float32{} {
				w[0] = 1
			}
			joints = append(joints, j)
			weights = append(weights, w)
		}
	}
	return joints, weights
}

func (c *Converter) material(ctx context.Context, mat *export.MaterialInfo) (uint32, error) {
	if idx, ok := c.materials[mat.Name]; ok {
		return idx, nil
	}
	var rf float32 = 0.9
	var mf float32 = 0
	color := mat.Color
	mm := &gltf.Material{
		Name: mat.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{color.X, color.Y, color.Z, color.W},
			RoughnessFactor: &rf,
			MetallicFactor:  &mf,
		},
	}
	if color.W < 0.99 {
		mm.AlphaMode = gltf.AlphaBlend
	}
	if tex := c.texture(ctx, mat.ColorID); tex != nil {
		mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: *tex}
	}
	if tex := c.texture(ctx, mat.NormalID); tex != nil {
		mm.NormalTexture = &gltf.NormalTexture{Index: tex}
	}
	idx := uint32(len(c.Materials))
	c.Materials = append(c.Materials, mm)
	c.materials[mat.Name] = idx
	return idx, nil
}

// texture embeds a texture and returns its index. Failures are logged and leave the material untextured.
func (c *Converter) texture(ctx context.Context, id uuid.UUID) *uint32 {
	if c.Cache == nil || id == uuid.Nil {
		return nil
	}
	if t, ok := c.images[id]; ok {
		return t
	}
	c.images[id] = nil
	name := export.TextureName(c.textures, id)
	if name == "" {
		return nil
	}
	img, err := c.Cache.Read(ctx, id)
	if err != nil {
		c.logger().Warn("texture read error", zap.String("texture", name), zap.Error(err))
		return nil
	}
	format, mimeType := "png", "image/png"
	if img.Codec == texture.CodecJPEG {
		format, mimeType = "jpg", "image/jpeg"
	}
	data, ext, err := texture.Encode(img, format, c.Options.TextureResolutionLimit)
	if err != nil {
		c.logger().Warn("texture encode error", zap.String("texture", name), zap.Error(err))
		return nil
	}
	imgIdx, err := modeler.WriteImage(c.Document, name+"."+ext, mimeType, bytes.NewReader(data))
	if err != nil {
		c.logger().Warn("texture write error", zap.String("texture", name), zap.Error(err))
		return nil
	}
	c.Buffers[0].ByteLength = uint32(len(c.Buffers[0].Data))
	c.Textures = append(c.Textures, &gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(imgIdx)})
	t := gltf.Index(uint32(len(c.Textures) - 1))
	c.images[id] = t
	return t
}

// Save writes doc as binary glTF for .glb paths and as JSON otherwise.
func Save(doc *gltf.Document, path string) error {
	if path == "" {
		return export.ErrNoFilename
	}
	if strings.ToLower(filepath.Ext(path)) == ".glb" {
		return gltf.SaveBinary(doc, path)
	}
	for _, b := range doc.Buffers {
		if b.URI == "" {
			b.EmbeddedResource()
		}
	}
	return gltf.Save(doc, path)
}
