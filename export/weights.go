package export

import "github.com/binzume/sceneexport/geom"

// Influence is one joint weight of a vertex.
type Influence struct {
	Joint  int
	Weight float32
}

// Influences unpacks a packed weight vector. Components with no fractional part are unused.
func Influences(w geom.Vector4) []Influence {
	var ret []Influence
	for _, c := range [4]float32{w.X, w.Y, w.Z, w.W} {
		joint := int(c)
		if amount := c - float32(joint); amount > 0 {
			ret = append(ret, Influence{Joint: joint, Weight: amount})
		}
	}
	return ret
}
