// Package imaging renders the reference overlays used by the precision
// pipeline and provides the image loading and cropping primitives under it.
//
// Three overlay kinds exist:
//   - the coarse reference grid (configurable rows/cols) drawn once over the
//     whole chart before coarse mapping,
//   - the fixed 8x6 micro-grid drawn over per-element crops and over the
//     matching region of a full-image copy during diagonal refinement,
//   - the 9-line horizontal ruler drawn inside a single cell during zone
//     refinement.
//
// Pixel coordinates are 0-based with the origin at the top-left; grid rows
// number bottom-up, and the conversion between the two lives in the grid
// package. Overlay renderers draw onto mutable RGBA copies and never touch
// the cached source image.
package imaging
