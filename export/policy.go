package export

import (
	"github.com/binzume/sceneexport/scene"
	"github.com/google/uuid"
)

// Policy decides what may leave the host. Exporters treat it as an opaque gate.
type Policy interface {
	CanExportObject(obj *scene.Object) bool
	// TextureName reports whether a texture may be exported and the name it is saved under.
	TextureName(id uuid.UUID) (string, bool)
}

// AllowAll exports everything and names textures by id.
type AllowAll struct{}

func (AllowAll) CanExportObject(*scene.Object) bool {
	return true
}

func (AllowAll) TextureName(id uuid.UUID) (string, bool) {
	return id.String(), true
}

// InventoryPolicy allows textures found in an inventory listing, under their item names.
// Other textures are allowed only when FullPerm is set.
type InventoryPolicy struct {
	Textures map[uuid.UUID]string
	Denied   map[uuid.UUID]bool
	FullPerm bool
}

func (p *InventoryPolicy) CanExportObject(obj *scene.Object) bool {
	return !p.Denied[obj.ID]
}

func (p *InventoryPolicy) TextureName(id uuid.UUID) (string, bool) {
	if name, ok := p.Textures[id]; ok {
		return name, true
	}
	return id.String(), p.FullPerm
}
