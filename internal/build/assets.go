package build

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ResourceDir is where Android resources live inside a project.
var ResourceDir = filepath.Join("android", "app", "src", "main", "res")

type density struct {
	Name       string
	IconSize   int
	SplashSize image.Point // portrait
}

var densities = []density{
	{Name: "mdpi", IconSize: 48, SplashSize: image.Pt(320, 480)},
	{Name: "hdpi", IconSize: 72, SplashSize: image.Pt(480, 800)},
	{Name: "xhdpi", IconSize: 96, SplashSize: image.Pt(720, 1280)},
	{Name: "xxhdpi", IconSize: 144, SplashSize: image.Pt(960, 1600)},
	{Name: "xxxhdpi", IconSize: 192, SplashSize: image.Pt(1280, 1920)},
}

var defaultSplashSize = image.Pt(480, 800)

const (
	DefaultMaxImagePixels = 40_000_000
	DefaultMaxImageSide   = 8192
)

// AssetProcessor places the app icon and splash screen into a project's
// resource tree, resized for every screen density.
// Images larger than MaxImagePixels or MaxImageSide are rejected
// before they are decoded.
type AssetProcessor struct {
	MaxImagePixels int64 // zero value means DefaultMaxImagePixels
	MaxImageSide   int   // zero value means DefaultMaxImageSide
}

type AssetProcessorProcessParams struct {
	IconFile   string // optional
	SplashFile string // optional
	ProjectDir string
}

// Process resizes the icon and the splash screen concurrently.
// Absent files are skipped. Errors are ErrAssetProcessing.
func (a *AssetProcessor) Process(ctx context.Context, params *AssetProcessorProcessParams) error {
	resDir := filepath.Join(params.ProjectDir, ResourceDir)

	g, ctx := errgroup.WithContext(ctx)
	if params.IconFile != "" {
		g.Go(func() error {
			return a.processIcon(ctx, params.IconFile, resDir)
		})
	}
	if params.SplashFile != "" {
		g.Go(func() error {
			return a.processSplash(ctx, params.SplashFile, resDir)
		})
	}
	if err := g.Wait(); err != nil {
		return stageError(ErrAssetProcessing, err)
	}
	return nil
}

func (a *AssetProcessor) processIcon(ctx context.Context, name string, resDir string) error {
	src, err := a.decodeImage(name)
	if err != nil {
		return fmt.Errorf("icon: %w", err)
	}

	for _, d := range densities {
		if err = ctx.Err(); err != nil {
			return err
		}
		icon := cover(src, image.Pt(d.IconSize, d.IconSize))
		dir := filepath.Join(resDir, "mipmap-"+d.Name)
		if err = writePNG(filepath.Join(dir, "ic_launcher.png"), icon); err != nil {
			return fmt.Errorf("icon: %w", err)
		}
		if err = writePNG(filepath.Join(dir, "ic_launcher_round.png"), icon); err != nil {
			return fmt.Errorf("icon: %w", err)
		}
	}

	return nil
}

func (a *AssetProcessor) processSplash(ctx context.Context, name string, resDir string) error {
	src, err := a.decodeImage(name)
	if err != nil {
		return fmt.Errorf("splash: %w", err)
	}

	for _, d := range densities {
		if err = ctx.Err(); err != nil {
			return err
		}
		portrait := cover(src, d.SplashSize)
		if err = writePNG(filepath.Join(resDir, "drawable-port-"+d.Name, "splash.png"), portrait); err != nil {
			return fmt.Errorf("splash: %w", err)
		}
		landscape := cover(src, image.Pt(d.SplashSize.Y, d.SplashSize.X))
		if err = writePNG(filepath.Join(resDir, "drawable-land-"+d.Name, "splash.png"), landscape); err != nil {
			return fmt.Errorf("splash: %w", err)
		}
	}

	if err = writePNG(filepath.Join(resDir, "drawable", "splash.png"), cover(src, defaultSplashSize)); err != nil {
		return fmt.Errorf("splash: %w", err)
	}

	return nil
}

func (a *AssetProcessor) decodeImage(name string) (image.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Check the declared size first, decoding allocates width×height pixels.
	config, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unsupported or unreadable image %s: %w", filepath.Base(name), err)
	}
	maxSide, maxPixels := a.maxImageSide(), a.maxImagePixels()
	if config.Width > maxSide || config.Height > maxSide || int64(config.Width)*int64(config.Height) > maxPixels {
		return nil, fmt.Errorf(
			"%s image %s is %dx%d, limit is %d pixels per side and %d pixels in total",
			format, filepath.Base(name), config.Width, config.Height, maxSide, maxPixels,
		)
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unsupported or unreadable image %s: %w", filepath.Base(name), err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty %s image %s", format, filepath.Base(name))
	}
	return img, nil
}

func (a *AssetProcessor) maxImagePixels() int64 {
	if a.MaxImagePixels <= 0 {
		return DefaultMaxImagePixels
	}
	return a.MaxImagePixels
}

func (a *AssetProcessor) maxImageSide() int {
	if a.MaxImageSide <= 0 {
		return DefaultMaxImageSide
	}
	return a.MaxImageSide
}

// cover scales src to fill size, keeping its aspect ratio,
// and crops whatever overflows around the centre.
func cover(src image.Image, size image.Point) image.Image {
	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	// Crop src to the aspect ratio of size.
	crop := b
	if srcW*size.Y > srcH*size.X {
		w := max(srcH*size.X/size.Y, 1)
		crop.Min.X = b.Min.X + (srcW-w)/2
		crop.Max.X = crop.Min.X + w
	} else {
		h := max(srcW*size.Y/size.X, 1)
		crop.Min.Y = b.Min.Y + (srcH-h)/2
		crop.Max.Y = crop.Min.Y + h
	}

	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

func writePNG(name string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o777); err != nil {
		return err
	}
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = png.Encode(f, img); err != nil {
		return err
	}
	return f.Close()
}
