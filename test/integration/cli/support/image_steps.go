package support

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// aDocumentPhotoAt writes the named synthetic scene (e.g. "axis-aligned").
func (testCtx *TestContext) aDocumentPhotoAt(scene, filename string) error {
	for _, s := range testutil.Scenes() {
		if s.Name == scene {
			return utils.SaveImage(testCtx.Path(filename), s.Render())
		}
	}
	return fmt.Errorf("unknown scene %q", scene)
}

// aBlankImageAt writes a featureless image that has no document edges.
func (testCtx *TestContext) aBlankImageAt(filename string) error {
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: 128}}, image.Point{}, draw.Src)
	return utils.SaveImage(testCtx.Path(filename), img)
}

// aDirectoryWithDocumentPhotos writes n axis-aligned scenes into dir.
func (testCtx *TestContext) aDirectoryWithDocumentPhotos(dir string, n int) error {
	for i := range n {
		if err := testCtx.aDocumentPhotoAt("axis-aligned", filepath.Join(dir, fmt.Sprintf("page%d.png", i+1))); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) aCorruptImageAt(filename string) error {
	path := testCtx.Path(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("not an image"), 0o600)
}

// theImageShouldHaveSize checks dimensions within tol pixels.
func (testCtx *TestContext) theImageShouldHaveSize(filename string, width, height, tol int) error {
	img, _, err := utils.LoadImage(testCtx.Path(filename))
	if err != nil {
		return err
	}
	b := img.Bounds()
	if abs(b.Dx()-width) > tol || abs(b.Dy()-height) > tol {
		return fmt.Errorf("image %s is %dx%d, expected %dx%d (±%d)", filename, b.Dx(), b.Dy(), width, height, tol)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// RegisterImageSteps registers the synthetic image fixtures.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a "([^"]*)" document photo "([^"]*)"$`, testCtx.aDocumentPhotoAt)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImageAt)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImageAt)
	sc.Step(`^a directory "([^"]*)" with (\d+) document photos?$`, testCtx.aDirectoryWithDocumentPhotos)
	sc.Step(`^the image "([^"]*)" should be about (\d+)x(\d+) within (\d+) pixels?$`, testCtx.theImageShouldHaveSize)
}
