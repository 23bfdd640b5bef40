package dae

import (
	"context"
	"path/filepath"

	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/scene"
	"github.com/binzume/sceneexport/texture"
	"go.uber.org/zap"
)

// Exporter runs a complete COLLADA export: textures first, then the document.
type Exporter struct {
	Options  *export.Options
	Policy   export.Policy
	Notifier export.Notifier
	// Cache is required when Options.ExportTextures is set.
	Cache texture.Cache
	// DefaultAvatar provides the skeleton for rigged meshes that are not worn.
	DefaultAvatar *scene.Avatar
}

func (e *Exporter) notify(name string, args map[string]string) {
	if e.Notifier != nil {
		e.Notifier.Notify(name, args)
	}
}

// Export writes sel to path. Textures are saved in the directory of path.
func (e *Exporter) Export(ctx context.Context, sel *scene.Selection, path string) (*export.Report, error) {
	s := NewSaverFromSelection(sel, e.Options, e.Policy)
	if s.Avatar == nil {
		s.Avatar = e.DefaultAvatar
	}
	if s.Len() == 0 {
		e.notify(export.NotifyExportFailed, nil)
		return nil, export.ErrNothingSelected
	}
	if path == "" {
		e.notify(export.NotifyExportFailed, nil)
		return nil, export.ErrNoFilename
	}
	textures := s.UpdateTextureInfo()

	if e.Options.ExportTextures && e.Cache != nil {
		saver := &texture.Saver{
			Cache:           e.Cache,
			Dir:             filepath.Dir(path),
			Format:          e.Options.ImageFormat,
			Timeout:         e.Options.TextureTimeout,
			Concurrency:     e.Options.TextureConcurrency,
			ResolutionLimit: e.Options.TextureResolutionLimit,
		}
		for _, r := range saver.Save(ctx, export.TextureRequests(textures)) {
			if r.Err != nil {
				e.notify(export.NotifyTextureExportFailed, map[string]string{"TEXTURE": r.Name, "REASON": r.Err.Error()})
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	report, err := s.Save(path)
	if err != nil {
		e.notify(export.NotifyExportFailed, map[string]string{"FILENAME": path, "REASON": err.Error()})
		return report, err
	}
	s.logger().Info("exported", zap.String("path", path), zap.Int("objects", report.Exported), zap.Int("textures", len(export.TextureRequests(textures))))
	e.notify(export.NotifyDAEExportSuccess, map[string]string{"FILENAME": path})
	return report, nil
}
