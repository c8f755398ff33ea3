// Package landmarks owns the face-mesh layer of the try-on pipeline.
//
// Responsibilities: the fixed 468-point landmark contract, decoding of
// recorded detector output (JSON Lines), synthetic mesh generation, and the
// first (mesh-wide) smoothing stage.
// Key types: Landmark, Set, Smoother, Frame.
//
// Dependency rule: landmarks may not import any other internal/tryon
// package. Anchors, compose and pipeline build on top of it.
package landmarks
