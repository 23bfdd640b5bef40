package export

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Image formats for exported textures. J2C keeps the source codec.
var ImageFormats = []string{"tga", "png", "j2c", "bmp", "jpg"}

type Options struct {
	// ExportRiggedMesh applies bind shapes and emits skins for rigged meshes.
	ExportRiggedMesh     bool `yaml:"exportRiggedMesh"`
	ConsolidateMaterials bool `yaml:"consolidateMaterials"`
	SkipTransparent      bool `yaml:"skipTransparent"`
	// ApplyTextureParams bakes planar projection, rotation, repeat and offset into UVs.
	ApplyTextureParams bool `yaml:"applyTextureParams"`

	ExportTextures         bool          `yaml:"exportTextures"`
	ImageFormat            string        `yaml:"imageFormat"`
	TextureTimeout         time.Duration `yaml:"textureTimeout"`
	TextureConcurrency     int           `yaml:"textureConcurrency"`
	TextureResolutionLimit int           `yaml:"textureResolutionLimit"`

	NameTimeout time.Duration `yaml:"nameTimeout"`
	// SLXPFormat is "json" or "binary".
	SLXPFormat string `yaml:"slxpFormat"`

	Author        string `yaml:"author"`
	AuthoringTool string `yaml:"authoringTool"`
}

func DefaultOptions() *Options {
	return &Options{
		ExportRiggedMesh:     true,
		ConsolidateMaterials: true,
		SkipTransparent:      true,
		ApplyTextureParams:   true,
		ExportTextures:       true,
		ImageFormat:          "tga",
		TextureTimeout:       60 * time.Second,
		TextureConcurrency:   4,
		NameTimeout:          60 * time.Second,
		SLXPFormat:           "json",
		Author:               "Unknown",
		AuthoringTool:        "sceneexport Collada Export",
	}
}

func (o *Options) Validate() error {
	found := false
	for _, f := range ImageFormats {
		found = found || f == o.ImageFormat
	}
	if !found {
		return errors.Errorf("unsupported image format %q", o.ImageFormat)
	}
	if o.SLXPFormat != "json" && o.SLXPFormat != "binary" {
		return errors.Errorf("unsupported slxp format %q", o.SLXPFormat)
	}
	if o.TextureConcurrency < 1 {
		return errors.Errorf("textureConcurrency must be positive: %d", o.TextureConcurrency)
	}
	return nil
}

// LoadOptions reads a YAML file over DefaultOptions.
func LoadOptions(path string) (*Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(data, opts); err != nil {
		return nil, errors.Wrapf(err, "options %s", path)
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrapf(err, "options %s", path)
	}
	return opts, nil
}
