package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/binzume/sceneexport/dae"
	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/gltfexport"
	"github.com/binzume/sceneexport/logger"
	"github.com/binzume/sceneexport/scene"
	"github.com/binzume/sceneexport/slxp"
	"github.com/binzume/sceneexport/texture"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func defaultOutputFile(input string) string {
	ext := filepath.Ext(input)
	return input[0:len(input)-len(ext)] + ".dae"
}

type exportParams struct {
	opts  *export.Options
	doc   *scene.Document
	sel   *scene.Selection
	cache texture.Cache
}

func exportDocument(ctx context.Context, p *exportParams, output string) (*export.Report, error) {
	ext := strings.ToLower(filepath.Ext(output))
	notifier := &export.LogNotifier{}
	switch ext {
	case ".dae":
		e := &dae.Exporter{
			Options:       p.opts,
			Notifier:      notifier,
			Cache:         p.cache,
			DefaultAvatar: p.doc.Avatar,
		}
		return e.Export(ctx, p.sel, output)
	case ".slxp":
		s := slxp.NewSession(p.sel, p.opts, nil, notifier)
		return s.Run(ctx, objectNames(p.doc), output)
	case ".glb", ".gltf":
		c := gltfexport.NewConverter(p.opts, nil)
		c.Avatar = p.doc.Avatar
		if p.opts.ExportTextures {
			c.Cache = p.cache
		}
		if len(p.sel.Entries) == 0 {
			return nil, export.ErrNothingSelected
		}
		doc, report := c.Convert(ctx, p.sel)
		return report, gltfexport.Save(doc, output)
	}
	return nil, fmt.Errorf("Unsupported output type: %v", ext)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s scene.yaml [output.dae|output.slxp|output.glb]\n       %s -dump file.slxp\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	optionsFile := flag.String("options", "", "export options (.yaml)")
	avatar := flag.Bool("avatar", false, "export the avatar's attachments instead of the selected objects")
	textureDir := flag.String("textures", "", "directory of <uuid>.<ext> texture files")
	format := flag.String("format", "", "image format for textures (tga, png, j2c, bmp, jpg)")
	slxpFormat := flag.String("slxpformat", "", "slxp encoding (json, binary)")
	noRigged := flag.Bool("norigged", false, "export rigged meshes as static geometry")
	dump := flag.Bool("dump", false, "print a binary .slxp file as JSON")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	logFile := flag.String("logfile", "", "also write logs to this file")
	flag.Parse()

	if err := logger.Init(*logLevel, *logFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log

	if flag.NArg() == 0 {
		flag.Usage()
		return
	}
	input := flag.Arg(0)

	if *dump {
		if err := dumpSLXP(input, os.Stdout); err != nil {
			log.Fatal("dump failed", zap.Error(err))
		}
		return
	}

	output := defaultOutputFile(input)
	if flag.NArg() > 1 {
		output = flag.Arg(1)
	}

	opts := export.DefaultOptions()
	if *optionsFile != "" {
		var err error
		if opts, err = export.LoadOptions(*optionsFile); err != nil {
			log.Fatal("bad options", zap.Error(err))
		}
	}
	if *format != "" {
		opts.ImageFormat = *format
	}
	if *slxpFormat != "" {
		opts.SLXPFormat = *slxpFormat
	}
	if *noRigged {
		opts.ExportRiggedMesh = false
	}
	if err := opts.Validate(); err != nil {
		log.Fatal("bad options", zap.Error(err))
	}

	doc, err := scene.Load(input)
	if err != nil {
		log.Fatal("load failed", zap.Error(err))
	}
	sel := doc.ObjectSelection()
	if *avatar {
		sel = doc.AvatarSelection()
	}

	p := &exportParams{opts: opts, doc: doc, sel: sel}
	if *textureDir != "" {
		p.cache = texture.NewDirCache(*textureDir)
	} else {
		opts.ExportTextures = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info("exporting", zap.String("in", input), zap.String("out", output), zap.Int("objects", len(sel.Entries)))
	report, err := exportDocument(ctx, p, output)
	if err != nil {
		log.Fatal("export failed", zap.Error(errors.Wrap(err, output)))
	}
	log.Info(report.String())
}
