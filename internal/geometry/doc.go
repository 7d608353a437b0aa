// Package geometry holds the small pure functions shared by the corner
// detectors and the rectifier: distances, angles, line intersection and
// clockwise ordering of quadrilateral corners.
//
// All coordinates are image pixel coordinates with the origin in the top-left
// corner and y growing downwards, so "clockwise" is clockwise as seen on
// screen.
package geometry
