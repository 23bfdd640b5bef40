package export

import (
	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/scene"
)

// planarTexCoord projects a scaled position onto a basis derived from the normal.
func planarTexCoord(pos, normal *geom.Vector3, scale *geom.Vector3) geom.Vector2 {
	var binormal geom.Vector3
	d := normal.Dot(&geom.AxisX)
	if d >= 0.5 || d <= -0.5 {
		binormal = geom.AxisY
		if normal.X < 0 {
			binormal = *binormal.Scale(-1)
		}
	} else {
		binormal = geom.AxisX
		if normal.Y > 0 {
			binormal = *binormal.Scale(-1)
		}
	}
	tangent := binormal.Cross(normal)
	scaled := pos.ScaledVec(scale)
	return geom.Vector2{
		X: 1 + (binormal.Dot(scaled)*2 - 0.5),
		Y: -(tangent.Dot(scaled)*2 - 0.5),
	}
}

// TransformTexCoords applies the texture entry's generation mode, rotation, repeat and offset.
// scale is the object scale used by planar projection.
func TransformTexCoords(coords []geom.Vector2, positions, normals []geom.Vector3, te *scene.TextureEntry, scale geom.Vector3) []geom.Vector2 {
	ret := make([]geom.Vector2, len(coords))
	center := geom.Vector2{X: 0.5, Y: 0.5}
	for i := range coords {
		c := coords[i]
		if te.TexGen == scene.TexGenPlanar {
			c = planarTexCoord(&positions[i], &normals[i], &scale)
		}
		t := c.Sub(&center).Rotate(te.Rotation)
		ret[i] = geom.Vector2{
			X: t.X*te.RepeatU + te.OffsetU + 0.5,
			Y: t.Y*te.RepeatV + te.OffsetV + 0.5,
		}
	}
	return ret
}
