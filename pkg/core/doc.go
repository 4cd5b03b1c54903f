// Package core defines the shared language of the churnline system.
//
// This package contains:
//   - Record values (Value, Kind, Record, Batch)
//   - The error taxonomy shared by cleaning, encoding and serving
//   - Tracked training runs (Run, RunStatus, Store)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
