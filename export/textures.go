package export

import (
	"github.com/binzume/sceneexport/scene"
	"github.com/binzume/sceneexport/texture"
	"github.com/google/uuid"
)

// TextureInfo is a texture referenced by the selection. Name is empty if it cannot be exported.
type TextureInfo struct {
	ID   uuid.UUID
	Name string
}

// CollectTextures lists diffuse, normal and specular ids in face order without duplicates.
func CollectTextures(objs []*scene.Object, policy Policy) []TextureInfo {
	var ret []TextureInfo
	seen := map[uuid.UUID]bool{}
	for _, obj := range objs {
		for _, f := range obj.Faces {
			candidates := []uuid.UUID{f.TE.TextureID}
			if f.TE.Material != nil {
				candidates = append(candidates, f.TE.Material.NormalID, f.TE.Material.SpecularID)
			}
			for _, id := range candidates {
				if seen[id] {
					continue
				}
				seen[id] = true
				info := TextureInfo{ID: id}
				if id != TextureBlank && id != uuid.Nil {
					if name, ok := policy.TextureName(id); ok {
						info.Name = texture.ScrubFileName(name)
					}
				}
				ret = append(ret, info)
			}
		}
	}
	return ret
}

// TextureName returns the export name of id, or "" if it has none.
func TextureName(textures []TextureInfo, id uuid.UUID) string {
	for _, t := range textures {
		if t.ID == id {
			return t.Name
		}
	}
	return ""
}

// TextureRequests returns the exportable textures as readback requests.
func TextureRequests(textures []TextureInfo) []texture.Request {
	var reqs []texture.Request
	for _, t := range textures {
		if t.Name != "" {
			reqs = append(reqs, texture.Request{ID: t.ID, Name: t.Name})
		}
	}
	return reqs
}
