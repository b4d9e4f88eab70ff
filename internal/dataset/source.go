// Package dataset provides read access to the raw vehicle-sale dataset and
// the pure filtering transform applied to it. The dataset is treated as
// slowly changing: it is re-read from its source on every task rather than
// cached, so freshness wins over repeated-read cost.
package dataset

import (
	"context"
	"errors"
	"io"
)

// ErrSourceNotFound indicates the dataset is absent at its configured
// location. This is a recoverable condition: it fails the task being
// processed, never the process.
var ErrSourceNotFound = errors.New("dataset source not found")

// Source is a read path to the raw dataset at a fixed logical location.
type Source interface {
	// Open returns a reader over the raw CSV dataset.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Location returns a human-readable identifier of the dataset location,
	// used in task failure messages.
	Location() string
}
