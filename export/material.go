package export

import (
	"fmt"
	"math"

	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/scene"
	"github.com/google/uuid"
)

type MaterialInfo struct {
	Name       string
	ColorID    uuid.UUID
	NormalID   uuid.UUID
	SpecularID uuid.UUID
	Color      geom.Vector4
}

func sameBits(a, b *geom.Vector4) bool {
	return math.Float32bits(a.X) == math.Float32bits(b.X) &&
		math.Float32bits(a.Y) == math.Float32bits(b.Y) &&
		math.Float32bits(a.Z) == math.Float32bits(b.Z) &&
		math.Float32bits(a.W) == math.Float32bits(b.W)
}

// Matches compares the deduplication key with a texture entry. Color is compared bit for bit.
func (m *MaterialInfo) Matches(te *scene.TextureEntry) bool {
	return m.ColorID == te.TextureID && m.NormalID == te.NormalID() &&
		m.SpecularID == te.SpecularID() && sameBits(&m.Color, &te.Color)
}

// SameKey compares everything but the name.
func (m *MaterialInfo) SameKey(o *MaterialInfo) bool {
	return m.ColorID == o.ColorID && m.NormalID == o.NormalID &&
		m.SpecularID == o.SpecularID && sameBits(&m.Color, &o.Color)
}

// SkipFace reports whether a face is left out of geometry and materials.
func SkipFace(te *scene.TextureEntry, skipTransparent bool) bool {
	return skipTransparent && (te.Color.W < 0.01 || te.TextureID == TextureTransparent)
}

// Registry assigns material names for one export.
type Registry struct {
	Consolidate     bool
	SkipTransparent bool
	materials       []MaterialInfo
}

func NewRegistry(opts *Options) *Registry {
	return &Registry{Consolidate: opts.ConsolidateMaterials, SkipTransparent: opts.SkipTransparent}
}

func (r *Registry) lookup(te *scene.TextureEntry) (MaterialInfo, bool) {
	if r.Consolidate {
		for _, m := range r.materials {
			if m.Matches(te) {
				return m, true
			}
		}
	}
	return MaterialInfo{}, false
}

// Get returns the material for te, allocating Material<N> unless an equal one exists in consolidate mode.
func (r *Registry) Get(te *scene.TextureEntry) MaterialInfo {
	if m, ok := r.lookup(te); ok {
		return m
	}
	m := MaterialInfo{
		Name:       fmt.Sprintf("Material%d", len(r.materials)),
		ColorID:    te.TextureID,
		NormalID:   te.NormalID(),
		SpecularID: te.SpecularID(),
		Color:      te.Color,
	}
	r.materials = append(r.materials, m)
	return m
}

// ForObject lists the materials of the retained faces in face order.
// In consolidate mode each material appears once.
func (r *Registry) ForObject(obj *scene.Object) []MaterialInfo {
	var ret []MaterialInfo
	for _, f := range obj.Faces {
		if SkipFace(f.TE, r.SkipTransparent) {
			continue
		}
		m := r.Get(f.TE)
		if r.Consolidate && containsKey(ret, &m) {
			continue
		}
		ret = append(ret, m)
	}
	return ret
}

func containsKey(list []MaterialInfo, m *MaterialInfo) bool {
	for i := range list {
		if list[i].SameKey(m) {
			return true
		}
	}
	return false
}

// FacesWithMaterial returns the indices of retained faces resolving to mat. It never allocates materials.
func (r *Registry) FacesWithMaterial(obj *scene.Object, mat *MaterialInfo) []int {
	var ret []int
	for i, f := range obj.Faces {
		if SkipFace(f.TE, r.SkipTransparent) {
			continue
		}
		if m, ok := r.lookup(f.TE); ok && m == *mat {
			ret = append(ret, i)
		}
	}
	return ret
}

func (r *Registry) All() []MaterialInfo {
	return r.materials
}

func (r *Registry) Len() int {
	return len(r.materials)
}
