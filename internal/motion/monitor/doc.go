// Package monitor serves the operator surface of the detector: health and
// status, recording and alert toggles, the motion log and CSV export, the
// live annotated frame, charts, prometheus metrics and a gRPC health
// service.
package monitor
