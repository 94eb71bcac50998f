package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ocr/app"
	"github.com/nvr-ai/go-ocr/config"
	"github.com/nvr-ai/go-ocr/controller"
	"github.com/nvr-ai/go-ocr/images"
	"github.com/nvr-ai/go-ocr/log"
	"github.com/nvr-ai/go-ocr/profiler"
	"github.com/nvr-ai/go-ocr/state"
	"github.com/nvr-ai/go-ocr/util"
)

// supportedImageExtensions are the file extensions accepted by -image.
var supportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"}

// InputType represents the type of input being processed
type InputType int

const (
	InputImage InputType = iota
	InputDirectory
)

// InputConfig holds the input configuration
type InputConfig struct {
	Type InputType
	Path string
}

// fileResult is the outcome of one batch entry.
type fileResult struct {
	file  util.ImageFile
	state state.State
	err   error
}

func main() {
	var (
		configPath string
		imagePath  string
		dirPath    string
		pageName   string
		outputDir  string
		workers    int
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&imagePath, "image", "", "Path to image file (.jpg, .jpeg, .png, .bmp, .gif, .webp)")
	flag.StringVar(&dirPath, "dir", "", "Directory of images to process")
	flag.StringVar(&pageName, "page", controller.PageDigits, "Page to run: digits or translate")
	flag.StringVar(&outputDir, "out", "", "Directory for preprocessed PNGs (optional)")
	flag.IntVar(&workers, "workers", 0, "Concurrent files (overrides workers)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := run(configPath, imagePath, dirPath, pageName, outputDir, workers, logLevel); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(configPath, imagePath, dirPath, pageName, outputDir string, workers int, logLevel string) error {
	input, err := validateInputFlags(imagePath, dirPath)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	pages, ok := app.Pages(pageName)
	if !ok {
		return errors.Errorf("unknown page %q", pageName)
	}

	var files []util.ImageFile
	switch input.Type {
	case InputImage:
		f, err := util.LoadImageFile(input.Path)
		if err != nil {
			return err
		}
		files = []util.ImageFile{f}
	case InputDirectory:
		if files, err = util.LoadDirectoryImageFiles(input.Path); err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.Errorf("no images found in %s", input.Path)
		}
	}

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	deps := app.Dependencies(cfg, prof)
	results, err := processFiles(context.Background(), pages[0], deps, files, cfg.Workers)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.err == nil && outputDir != "" {
			r.err = writeProcessed(outputDir, r.file, r.state)
		}
		printResult(r)
		if r.err != nil || r.state.Phase != state.PhaseSuccess {
			failed++
		}
	}

	if op, ok := prof.Stats().Operation(pages[0].Name + ".pipeline"); ok {
		log.Infow("batch finished", "files", len(results), "failed", failed, "avg", op.Avg, "max", op.Max)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// processFiles runs every file through its own controller on a bounded pool.
// Results keep the order of files.
func processFiles(ctx context.Context, page controller.Page, deps controller.Dependencies, files []util.ImageFile, workers int) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(workers, func(arg any) {
		defer wg.Done()
		i := arg.(int)
		c := controller.New(page, deps, nil)
		st, err := c.Upload(ctx, files[i].Data)
		if err == nil && !page.ProcessOnUpload && st.Image != nil {
			st, err = c.Process(ctx)
		}
		results[i] = fileResult{file: files[i], state: st, err: err}
	})
	if err != nil {
		return nil, errors.Wrap(err, "create batch pool")
	}
	defer pool.Release()

	for i := range files {
		wg.Add(1)
		if err := pool.Invoke(i); err != nil {
			wg.Done()
			results[i] = fileResult{file: files[i], err: errors.Wrap(err, "queue file")}
		}
	}
	wg.Wait()
	return results, nil
}

// writeProcessed saves the preprocessed image next to the other outputs.
func writeProcessed(outputDir string, file util.ImageFile, st state.State) error {
	if st.Processed == "" {
		return nil
	}
	data, err := images.DecodeDataURI(st.Processed)
	if err != nil {
		return err
	}
	name := "processed_" + strings.TrimSuffix(file.Name, filepath.Ext(file.Name)) + ".png"
	if err := os.WriteFile(filepath.Join(outputDir, name), data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return nil
}

func printResult(r fileResult) {
	switch {
	case r.err != nil:
		fmt.Printf("%s\terror\t%v\n", r.file.Name, r.err)
	case r.state.Phase == state.PhaseError:
		fmt.Printf("%s\terror\t%s\n", r.file.Name, r.state.Error)
	case r.state.TranslatedText != "":
		fmt.Printf("%s\t%s\t%s\n", r.file.Name, oneLine(r.state.Text), oneLine(r.state.TranslatedText))
	default:
		fmt.Printf("%s\t%s\n", r.file.Name, oneLine(r.state.Text))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// validateInputFlags validates the input flags and returns the input configuration
func validateInputFlags(imagePath, dirPath string) (*InputConfig, error) {
	if imagePath != "" && dirPath != "" {
		return nil, errors.New("cannot specify both -image and -dir flags")
	}
	if imagePath == "" && dirPath == "" {
		return nil, errors.New("one of -image or -dir is required")
	}

	if dirPath != "" {
		info, err := os.Stat(dirPath)
		if err != nil {
			return nil, errors.Wrap(err, "directory validation error")
		}
		if !info.IsDir() {
			return nil, errors.Errorf("not a directory: %s", dirPath)
		}
		return &InputConfig{Type: InputDirectory, Path: dirPath}, nil
	}

	if err := validateFile(imagePath, supportedImageExtensions); err != nil {
		return nil, errors.Wrap(err, "image validation error")
	}
	return &InputConfig{Type: InputImage, Path: imagePath}, nil
}

// validateFile checks if the file exists and has a supported extension
func validateFile(filePath string, supportedExtensions []string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return errors.Errorf("file not found: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supportedExt := range supportedExtensions {
		if ext == supportedExt {
			return nil
		}
	}

	return errors.Errorf("unsupported file extension: %s. Supported extensions: %v", ext, supportedExtensions)
}
