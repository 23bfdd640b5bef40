package export

import (
	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/scene"
	"github.com/pkg/errors"
)

type ExtractOptions struct {
	SkipTransparent    bool
	ApplyTextureParams bool
	// ApplyBindShape transforms rigged vertices by the bind shape matrix.
	ApplyBindShape bool
}

// MeshFace is one retained face after extraction.
type MeshFace struct {
	// Index is the face index within the object.
	Index int
	// VertexOffset is the number of vertices emitted by earlier retained faces.
	VertexOffset int
	Positions    []geom.Vector3
	Normals      []geom.Vector3
	Tangents     []geom.Vector3
	UVs          []geom.Vector2
	Weights      []geom.Vector4
	Indices      []uint16
	TE           *scene.TextureEntry
}

type Mesh struct {
	Object *scene.Object
	Faces  []*MeshFace

	// Flattened per-vertex arrays with stride 3, 3 and 2.
	Positions []float32
	Normals   []float32
	UVs       []float32
}

func (m *Mesh) NumVertices() int {
	return len(m.Positions) / 3
}

// Face returns the retained face with the given object face index, or nil.
func (m *Mesh) Face(index int) *MeshFace {
	for _, f := range m.Faces {
		if f.Index == index {
			return f
		}
	}
	return nil
}

// Triangles returns mesh-wide indices for the listed faces (all faces if faces is nil).
func (m *Mesh) Triangles(faces []int) []uint32 {
	var ret []uint32
	for _, f := range m.Faces {
		if faces != nil && !containsInt(faces, f.Index) {
			continue
		}
		for _, idx := range f.Indices {
			ret = append(ret, uint32(f.VertexOffset)+uint32(idx))
		}
	}
	return ret
}

// SelectFaces returns the retained faces in the list, in face order.
func (m *Mesh) SelectFaces(faces []int) []*MeshFace {
	var ret []*MeshFace
	for _, f := range m.Faces {
		if faces == nil || containsInt(faces, f.Index) {
			ret = append(ret, f)
		}
	}
	return ret
}

func containsInt(a []int, v int) bool {
	for _, e := range a {
		if e == v {
			return true
		}
	}
	return false
}

func checkFace(f *scene.Face) error {
	n := f.NumVertices()
	if len(f.Normals) != n || len(f.TexCoords) != n {
		return errors.Wrapf(ErrFaceLayout, "%d positions, %d normals, %d texcoords", n, len(f.Normals), len(f.TexCoords))
	}
	if len(f.Tangents) != 0 && len(f.Tangents) != n {
		return errors.Wrapf(ErrFaceLayout, "%d positions, %d tangents", n, len(f.Tangents))
	}
	if len(f.Weights) != 0 && len(f.Weights) != n {
		return errors.Wrapf(ErrFaceLayout, "%d positions, %d weights", n, len(f.Weights))
	}
	if len(f.Indices)%3 != 0 {
		return errors.Wrapf(ErrFaceLayout, "%d indices is not a triangle list", len(f.Indices))
	}
	for _, idx := range f.Indices {
		if int(idx) >= n {
			return errors.Wrapf(ErrFaceLayout, "index %d out of range (%d vertices)", idx, n)
		}
	}
	return nil
}

// BindShapeNormalMatrix returns the matrix applied to normals of a rigged mesh:
// the bind shape rotation with the reciprocal of its scale.
func BindShapeNormalMatrix(bindShape *geom.Matrix4) *geom.Matrix4 {
	rot, scale := bindShape.RotationScale()
	return geom.NewTRSMatrix4(&geom.Vector3{}, rot, scale.Reciprocal())
}

// ExtractMesh flattens the retained faces of obj.
func ExtractMesh(obj *scene.Object, opts ExtractOptions) (*Mesh, error) {
	mesh := &Mesh{Object: obj}

	var bindShape, normalMtx *geom.Matrix4
	if opts.ApplyBindShape && obj.IsRiggedMesh() {
		bindShape = &obj.Skin.BindShapeMatrix
		normalMtx = BindShapeNormalMatrix(bindShape)
	}

	offset := 0
	for i, f := range obj.Faces {
		if SkipFace(f.TE, opts.SkipTransparent) {
			continue
		}
		if err := checkFace(f); err != nil {
			return nil, errors.Wrapf(err, "face %d", i)
		}
		n := f.NumVertices()
		mf := &MeshFace{
			Index:        i,
			VertexOffset: offset,
			Positions:    make([]geom.Vector3, n),
			Normals:      make([]geom.Vector3, n),
			Tangents:     f.Tangents,
			Weights:      f.Weights,
			Indices:      f.Indices,
			TE:           f.TE,
		}
		if opts.ApplyTextureParams {
			mf.UVs = TransformTexCoords(f.TexCoords, f.Positions, f.Normals, f.TE, obj.World.Scale)
		} else {
			mf.UVs = f.TexCoords
		}
		for vi := 0; vi < n; vi++ {
			v, nv := f.Positions[vi], f.Normals[vi]
			if bindShape != nil {
				v = *bindShape.ApplyTo(&v)
				nv = *normalMtx.ApplyToDirection(&nv).Normalize()
			}
			mf.Positions[vi], mf.Normals[vi] = v, nv
			mesh.Positions = append(mesh.Positions, v.X, v.Y, v.Z)
			mesh.Normals = append(mesh.Normals, nv.X, nv.Y, nv.Z)
			mesh.UVs = append(mesh.UVs, mf.UVs[vi].X, mf.UVs[vi].Y)
		}
		mesh.Faces = append(mesh.Faces, mf)
		offset += n
	}
	return mesh, nil
}
