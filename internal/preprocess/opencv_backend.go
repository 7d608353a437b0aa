//go:build gocv

package preprocess

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/docscan/internal/utils"
	"gocv.io/x/gocv"
)

// OpenCVBackendName selects the gocv-backed implementation.
const OpenCVBackendName = "opencv"

func init() {
	registerBackend(OpenCVBackendName, func() Backend { return opencvBackend{} })
}

type opencvBackend struct{}

func (opencvBackend) Name() string { return OpenCVBackendName }

func (opencvBackend) EdgeMap(img image.Image, cfg Config) (*EdgeMap, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if err := cfg.Validate(); err != nil {
		return nil, &utils.ImageProcessingError{Operation: "preprocess", Err: err}
	}
	small, sx, sy, err := utils.FitWithin(img, cfg.MaxDimension)
	if err != nil {
		return nil, err
	}

	src, err := gocv.ImageToMatRGB(small)
	if err != nil {
		return nil, &utils.ImageProcessingError{Operation: "opencv convert", Err: err}
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)
	if cfg.Equalize {
		gocv.EqualizeHist(gray, &gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	if cfg.BlurKernel > 1 {
		gocv.GaussianBlur(gray, &blurred, image.Pt(cfg.BlurKernel, cfg.BlurKernel), 0, 0, gocv.BorderDefault)
	} else {
		gray.CopyTo(&blurred)
	}

	low, high := cfg.LowThreshold, cfg.HighThreshold
	if cfg.Adaptive {
		median := gocv.NewMat()
		defer median.Close()
		gocv.MedianBlur(gray, &median, cfg.MedianKernel)
		var bins [256]int
		for _, v := range median.ToBytes() {
			bins[v]++
		}
		low, high = AdaptiveThresholds(medianOfHistogram(bins[:]), cfg)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, float32(low), float32(high))

	closed := gocv.NewMat()
	defer closed.Close()
	if cfg.CloseKernel > 1 {
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.CloseKernel, cfg.CloseKernel))
		defer kernel.Close()
		gocv.Dilate(edges, &closed, kernel)
		gocv.Erode(closed, &closed, kernel)
	} else {
		edges.CopyTo(&closed)
	}

	w, h := edges.Cols(), edges.Rows()
	edgePix, closedPix := edges.ToBytes(), closed.ToBytes()
	if len(edgePix) != w*h || len(closedPix) != w*h {
		return nil, &utils.ImageProcessingError{
			Operation: "opencv edges",
			Err:       fmt.Errorf("unexpected plane size %d for %dx%d", len(edgePix), w, h),
		}
	}
	return &EdgeMap{
		Width:  w,
		Height: h,
		Edges:  edgePix,
		Closed: closedPix,
		ScaleX: sx,
		ScaleY: sy,
		Low:    low,
		High:   high,
	}, nil
}
