package testutil

import (
	"image"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Scene is a synthetic photograph of a single document with known corners.
type Scene struct {
	Name    string
	Width   int
	Height  int
	Corners [4]utils.Point // top-left, top-right, bottom-right, bottom-left
	Label   string
}

// Render draws the scene: paper quad on the desk colour, with the label
// printed near the document centre when set.
func (s Scene) Render() *image.RGBA {
	img := DocumentImage(s.Width, s.Height, s.Corners, DeskColor, PaperColor)
	if s.Label != "" {
		box := utils.BoundingBox(s.Corners[:])
		cx := int((box.MinX + box.MaxX) / 2)
		cy := int((box.MinY + box.MaxY) / 2)
		DrawLabel(img, s.Label, cx-len(s.Label)*7/2, cy, InkColor)
	}
	return img
}

// Scenes returns the standard detection scenes.
func Scenes() []Scene {
	return []Scene{
		AxisAlignedScene(),
		{
			Name:   "perspective",
			Width:  800,
			Height: 600,
			Corners: [4]utils.Point{
				{X: 150, Y: 100}, {X: 650, Y: 120}, {X: 700, Y: 520}, {X: 100, Y: 500},
			},
			Label: "INVOICE 2024",
		},
		{
			Name:   "rotated",
			Width:  700,
			Height: 700,
			Corners: [4]utils.Point{
				{X: 180, Y: 120}, {X: 560, Y: 170}, {X: 510, Y: 580}, {X: 130, Y: 530},
			},
		},
		{
			Name:   "high-resolution",
			Width:  2400,
			Height: 1800,
			Corners: [4]utils.Point{
				{X: 300, Y: 240}, {X: 2050, Y: 300}, {X: 2100, Y: 1560}, {X: 260, Y: 1500},
			},
			Label: "RECEIPT",
		},
	}
}

// AxisAlignedScene is a 400x600 sheet inset by 50px on a 500x700 image.
func AxisAlignedScene() Scene {
	return Scene{
		Name:   "axis-aligned",
		Width:  500,
		Height: 700,
		Corners: [4]utils.Point{
			{X: 50, Y: 50}, {X: 450, Y: 50}, {X: 450, Y: 650}, {X: 50, Y: 650},
		},
	}
}
