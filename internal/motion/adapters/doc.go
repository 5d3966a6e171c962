// Package adapters binds the detection pipeline's sinks to real outputs:
// the sqlite motion log and snapshot directory, the object-store mirror,
// alert commands, the serial siren and the live frame buffer served over
// HTTP.
package adapters
