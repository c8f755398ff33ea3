// Package compose owns the overlay layer of the try-on pipeline.
//
// Responsibilities: placement math for ear and neck pieces, fixed draw
// ordering, the render-surface abstraction with an RGBA implementation,
// and flattening video plus overlay into a captured still.
// Key types: Layout, Compositor, Surface, DrawCommand.
//
// Dependency rule: compose may depend on anchors and assets. It never
// holds per-session state; every Render clears and redraws the surface.
package compose
