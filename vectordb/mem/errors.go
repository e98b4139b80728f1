package mem

import "errors"

var (
	// ErrSnapshotCorrupt indicates the persisted snapshot is malformed or inconsistent.
	ErrSnapshotCorrupt = errors.New("mem: snapshot corrupt")
	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("mem: vector dimension mismatch")
)
