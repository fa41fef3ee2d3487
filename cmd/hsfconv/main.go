package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/hsfkit/hsfconv/converter"
	"github.com/hsfkit/hsfconv/hsf"
	"github.com/hsfkit/hsfconv/internal/logger"
)

func defaultOutputFile(input string) string {
	ext := filepath.Ext(input)
	return input[0:len(input)-len(ext)] + ".dae"
}

func saveDocument(f *hsf.File, output string, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(output))
	switch ext {
	case ".dae":
		conv := converter.NewHSFToDAEConverter(&converter.HSFToDAEOption{
			ImageDir: cfg.ImageDir,
		})
		doc, err := conv.Convert(f)
		if err != nil {
			return err
		}
		if err := doc.WriteFile(output); err != nil {
			return err
		}
		if !cfg.SkipTextures {
			texExt := converter.TexturePNG
			if cfg.TextureFormat == "tga" {
				texExt = converter.TextureTGA
			}
			dir := filepath.Join(filepath.Dir(output), cfg.ImageDir)
			return converter.ExportTextures(f, dir, texExt)
		}
		return nil
	case ".glb":
		conv := converter.NewHSFToGLTFConverter(&converter.HSFToGLTFOption{
			ForceUnlit: cfg.Unlit,
		})
		doc, err := conv.Convert(f)
		if err != nil {
			return err
		}
		return gltf.SaveBinary(doc, output)
	}
	return fmt.Errorf("unsupported output type: %v", ext)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s input.hsf [output.dae|output.glb]\n", os.Args[0])
		flag.PrintDefaults()
	}
	configFile := flag.String("config", "", "YAML config file")
	logLevel := flag.String("loglevel", "", "log level (debug|info|warn|error)")
	logFile := flag.String("logfile", "", "log to file with rotation")
	imageDir := flag.String("images", "", "texture output directory")
	texFormat := flag.String("texfmt", "", "texture output format (png|tga)")
	overrides := flag.String("overrides", "", "texture override directory")
	noTextures := flag.Bool("notex", false, "skip texture output")
	unlit := flag.Bool("gltfunlit", false, "unlit all materials (.glb)")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return
	}

	cfg := DefaultConfig()
	if *configFile != "" {
		c, err := LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = c
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *imageDir != "" {
		cfg.ImageDir = *imageDir
	}
	if *texFormat != "" {
		cfg.TextureFormat = *texFormat
	}
	if *overrides != "" {
		cfg.TextureOverrides = *overrides
	}
	if *noTextures {
		cfg.SkipTextures = true
	}
	if *unlit {
		cfg.Unlit = true
	}

	logger.Init(cfg.LogLevel, cfg.LogFile)
	defer logger.Log.Sync()

	input := flag.Arg(0)
	output := defaultOutputFile(input)
	if flag.NArg() > 1 {
		output = flag.Arg(1)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		logger.Sugar.Fatal(err)
	}
	f, err := hsf.Parse(data)
	if err != nil {
		logger.Sugar.Fatalf("parse %s: %v", input, err)
	}
	for _, w := range f.Warnings {
		logger.Sugar.Warn(w)
	}
	logger.Sugar.Infof("parsed %s: %d nodes, %d meshes, %d materials, %d textures",
		input, len(f.Nodes), len(f.Meshes), len(f.Materials), len(f.Textures))

	if cfg.TextureOverrides != "" {
		if err := converter.ApplyTextureOverrides(f, cfg.TextureOverrides); err != nil {
			logger.Sugar.Fatal(err)
		}
	}

	logger.Sugar.Info("out: ", output)
	if err := saveDocument(f, output, cfg); err != nil {
		logger.Sugar.Fatal(err)
	}
}
