package export

import (
	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/scene"
	"github.com/google/uuid"
)

func newTE(id uuid.UUID, color geom.Vector4) *scene.TextureEntry {
	return &scene.TextureEntry{TextureID: id, Color: color, RepeatU: 1, RepeatV: 1}
}

var white = geom.Vector4{X: 1, Y: 1, Z: 1, W: 1}

// quad returns a unit square face in the XY plane.
func quad(te *scene.TextureEntry) *scene.Face {
	return &scene.Face{
		Positions: []geom.Vector3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Normals:   []geom.Vector3{{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1}},
		TexCoords: []geom.Vector2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Indices:   []uint16{0, 1, 2, 0, 2, 3},
		TE:        te,
	}
}

func newObject(name string, faces ...*scene.Face) *scene.Object {
	return &scene.Object{ID: uuid.New(), Name: name, Local: scene.IdentityTransform(), World: scene.IdentityTransform(), Faces: faces}
}
