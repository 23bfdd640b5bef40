package dae

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/scene"
	"github.com/binzume/sceneexport/texture"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	names []string
}

func (r *recorder) Notify(name string, args map[string]string) {
	r.names = append(r.names, name)
}

func TestExporter(t *testing.T) {
	cacheDir, outDir := t.TempDir(), t.TempDir()
	brick, missing := uuid.New(), uuid.New()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, brick.String()+".png"), buf.Bytes(), 0644))

	opts := testOptions()
	opts.ExportTextures = true
	opts.ImageFormat = "png"
	rec := &recorder{}
	e := &Exporter{
		Options:  opts,
		Policy:   &export.InventoryPolicy{Textures: map[uuid.UUID]string{brick: "brick", missing: "gone"}},
		Notifier: rec,
		Cache:    texture.NewDirCache(cacheDir),
	}
	sel := &scene.Selection{Entries: []scene.Entry{
		{Object: newObject("wall", quad(newTE(brick, white)), quad(newTE(missing, white))), Name: "wall"},
	}}

	path := filepath.Join(outDir, "wall.dae")
	report, err := e.Export(context.Background(), sel, path)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Exported)
	assert.FileExists(t, path)
	assert.FileExists(t, filepath.Join(outDir, "brick.png"))
	assert.Equal(t, []string{export.NotifyTextureExportFailed, export.NotifyDAEExportSuccess}, rec.names)
}

func TestExporterNothingSelected(t *testing.T) {
	rec := &recorder{}
	e := &Exporter{Options: testOptions(), Policy: export.AllowAll{}, Notifier: rec}

	_, err := e.Export(context.Background(), &scene.Selection{}, filepath.Join(t.TempDir(), "x.dae"))
	assert.ErrorIs(t, err, export.ErrNothingSelected)
	assert.Equal(t, []string{export.NotifyExportFailed}, rec.names)

	sel := &scene.Selection{Entries: []scene.Entry{{Object: newObject("box", quad(newTE(uuid.New(), white))), Name: "box"}}}
	_, err = e.Export(context.Background(), sel, "")
	assert.ErrorIs(t, err, export.ErrNoFilename)

	denied := &Exporter{Options: testOptions(), Policy: &export.InventoryPolicy{Denied: map[uuid.UUID]bool{sel.Entries[0].Object.ID: true}}}
	_, err = denied.Export(context.Background(), sel, "x.dae")
	assert.ErrorIs(t, err, export.ErrNothingSelected)
}
