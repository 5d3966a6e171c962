// Package l3grid owns Layer 3 (Grid) of the motion data model.
//
// Responsibilities: the per-pixel mixture-of-Gaussians background model,
// foreground mask extraction, model statistics, and background snapshot
// encoding for persistence.
// Key types: Model, Mask, BackgroundConfig, BgSnapshot.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
// No SQL/database code is allowed in this package.
package l3grid
