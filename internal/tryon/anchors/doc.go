// Package anchors owns the anchor layer of the try-on pipeline.
//
// Responsibilities: picking the ear and neck source landmarks from a
// smoothed mesh (with a fixed fallback chain), converting them to pixel
// space, the second, anchor-specific smoothing stage, and the face-width
// scale reference.
// Key types: Tracker, Point, Anchors, FaceMetrics.
//
// Dependency rule: anchors may depend on landmarks, never on compose or
// pipeline.
package anchors
