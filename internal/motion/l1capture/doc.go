// Package l1capture owns Layer 1 (Capture) of the motion data model.
//
// Responsibilities: the capture-device boundary. A Source yields frames in
// strictly increasing capture order and reports ErrUnavailable when no frame
// is ready; the caller skips the cycle in that case.
// Implementations: a gocv camera (build tag gocv), an image-directory
// replay, and a synthetic scene for development and tests.
//
// Dependency rule: L1 depends only on L2 for the Frame type it returns.
package l1capture
