// Package l2frames owns Layer 2 (Frames) of the motion data model.
//
// Responsibilities: the Frame type, normalisation to the canonical
// resolution the background model is configured for, drawing detected
// regions onto a frame, and JPEG encoding of evidence frames.
// Key types: Frame, Size.
//
// Dependency rule: L2 may depend on L1, but never on L3+. Regions are
// passed in as plain rectangles so this layer does not import perception.
package l2frames
