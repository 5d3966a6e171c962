// Package l4perception owns Layer 4 (Perception) of the motion data model.
//
// Responsibilities: binarising the foreground mask with a high-confidence
// cutoff, labelling connected components, and rejecting components too
// small to be motion.
// Key types: Region, Extractor.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
// No SQL/database code is allowed in this package.
package l4perception
