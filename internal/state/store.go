// Package state tracks training runs in SQLite: each run with its status,
// the parameters it was trained with and the metrics it reached.
package state

import "github.com/leapstack-labs/churnline/pkg/core"

// Store is the tracking store contract.
type Store = core.Store

var _ Store = (*SQLiteStore)(nil)
