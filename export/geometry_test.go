package export

import (
	"math"
	"testing"

	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/scene"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformTexCoordsIdentity(t *testing.T) {
	coords := []geom.Vector2{{X: 0, Y: 0}, {X: 0.25, Y: 0.75}, {X: 1, Y: 1}, {X: -2, Y: 3.5}}
	te := newTE(uuid.New(), white)
	ret := TransformTexCoords(coords, make([]geom.Vector3, 4), make([]geom.Vector3, 4), te, geom.Vector3{X: 1, Y: 1, Z: 1})
	for i := range coords {
		assert.InDelta(t, coords[i].X, ret[i].X, 1e-6)
		assert.InDelta(t, coords[i].Y, ret[i].Y, 1e-6)
	}
}

func TestTransformTexCoords(t *testing.T) {
	te := newTE(uuid.New(), white)
	te.Rotation = math.Pi / 2
	te.RepeatU, te.RepeatV = 2, 2
	te.OffsetU = 0.1

	ret := TransformTexCoords([]geom.Vector2{{X: 1, Y: 0.5}}, make([]geom.Vector3, 1), make([]geom.Vector3, 1), te, geom.Vector3{X: 1, Y: 1, Z: 1})
	// (0.5, 0) rotated by 90 degrees is (0, -0.5)
	assert.InDelta(t, 0.6, ret[0].X, 1e-5)
	assert.InDelta(t, -0.5, ret[0].Y, 1e-5)
}

func TestPlanarTexCoords(t *testing.T) {
	te := newTE(uuid.New(), white)
	te.TexGen = scene.TexGenPlanar

	// +X facing: binormal is Y, tangent is Y x X = -Z
	pos := []geom.Vector3{{X: 0.5, Y: 0.25, Z: 0.1}}
	normal := []geom.Vector3{{X: 1}}
	ret := TransformTexCoords([]geom.Vector2{{}}, pos, normal, te, geom.Vector3{X: 1, Y: 1, Z: 1})
	assert.InDelta(t, 1+(0.25*2-0.5), ret[0].X, 1e-6)
	assert.InDelta(t, -(-0.1*2 - 0.5), ret[0].Y, 1e-6)

	// +Z facing: binormal is X
	normal = []geom.Vector3{{Z: 1}}
	ret = TransformTexCoords([]geom.Vector2{{}}, pos, normal, te, geom.Vector3{X: 2, Y: 2, Z: 2})
	assert.InDelta(t, 1+(1.0*2-0.5), ret[0].X, 1e-6)
}

func TestExtractMesh(t *testing.T) {
	a := uuid.New()
	obj := newObject("box", quad(newTE(a, white)), quad(newTE(TextureTransparent, white)), quad(newTE(a, white)))

	mesh, err := ExtractMesh(obj, ExtractOptions{SkipTransparent: true})
	require.NoError(t, err)
	require.Len(t, mesh.Faces, 2)
	assert.Equal(t, 0, mesh.Faces[0].VertexOffset)
	assert.Equal(t, 2, mesh.Faces[1].Index)
	assert.Equal(t, 4, mesh.Faces[1].VertexOffset)
	assert.Equal(t, 8, mesh.NumVertices())
	assert.Equal(t, len(mesh.Positions), 3*len(mesh.UVs)/2)
	assert.Equal(t, len(mesh.Positions), len(mesh.Normals))

	assert.Equal(t, []uint32{4, 5, 6, 4, 6, 7}, mesh.Triangles([]int{2}))
	assert.Len(t, mesh.Triangles(nil), 12)
	assert.Nil(t, mesh.Face(1))

	// offsets do not depend on which faces are later selected
	mesh2, err := ExtractMesh(obj, ExtractOptions{SkipTransparent: true, ApplyTextureParams: true})
	require.NoError(t, err)
	assert.Equal(t, mesh.Triangles(nil), mesh2.Triangles(nil))
}

func TestExtractMeshLayoutError(t *testing.T) {
	f := quad(newTE(uuid.New(), white))
	f.Normals = f.Normals[:3]
	_, err := ExtractMesh(newObject("bad", f), ExtractOptions{})
	assert.ErrorIs(t, err, ErrFaceLayout)

	f = quad(newTE(uuid.New(), white))
	f.Indices = []uint16{0, 1, 9}
	_, err = ExtractMesh(newObject("bad", f), ExtractOptions{})
	assert.ErrorIs(t, err, ErrFaceLayout)

	f = &scene.Face{TE: newTE(uuid.New(), white)}
	mesh, err := ExtractMesh(newObject("empty", f), ExtractOptions{})
	require.NoError(t, err)
	assert.Zero(t, mesh.NumVertices())
}

func TestExtractMeshBindShape(t *testing.T) {
	obj := newObject("rigged", quad(newTE(uuid.New(), white)))
	rot := geom.NewQuaternion(0, 0, math.Sqrt2/2, math.Sqrt2/2)
	obj.Skin = &scene.SkinInfo{
		BindShapeMatrix: *geom.NewTRSMatrix4(geom.NewVector3(0, 0, 1), rot, geom.NewVector3(2, 2, 4)),
	}

	mesh, err := ExtractMesh(obj, ExtractOptions{ApplyBindShape: true})
	require.NoError(t, err)
	p := mesh.Faces[0].Positions[1] // (1,0,0) scaled by 2 then rotated to (0,2,0), then translated
	assert.InDelta(t, 0, p.X, 1e-5)
	assert.InDelta(t, 2, p.Y, 1e-5)
	assert.InDelta(t, 1, p.Z, 1e-5)
	n := mesh.Faces[0].Normals[0]
	assert.InDelta(t, 1, n.Len(), 1e-5)
	assert.InDelta(t, 1, n.Z, 1e-5)

	mesh, err = ExtractMesh(obj, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, geom.Vector3{X: 1}, mesh.Faces[0].Positions[1])
}

func TestBindShapeNormalMatrix(t *testing.T) {
	m := BindShapeNormalMatrix(geom.NewScaleMatrix4(2, 4, 8))
	assert.InDelta(t, 0.5, m[0], 1e-6)
	assert.InDelta(t, 0.25, m[5], 1e-6)
	assert.InDelta(t, 0.125, m[10], 1e-6)
}

func TestInfluences(t *testing.T) {
	in := Influences(geom.Vector4{X: 0.5, Y: 2.25, Z: 3, W: 0})
	require.Len(t, in, 2)
	assert.Equal(t, Influence{Joint: 0, Weight: 0.5}, in[0])
	assert.Equal(t, Influence{Joint: 2, Weight: 0.25}, in[1])
}
