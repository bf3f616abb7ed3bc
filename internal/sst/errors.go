package sst

import "errors"

// ErrIO marks a failure talking to the underlying file: fatal to the
// current operation, with no retry at this layer. Recovery, if any, is the
// caller's responsibility.
var ErrIO = errors.New("sst: i/o error")

// ErrIntegrity marks a structural problem: on open, a bad magic, a header
// size that doesn't match this build's compiled layout, or a level whose
// count exceeds its region's capacity; during a merge, a merged run larger
// than the target level's capacity. Fatal; returned wrapped with context.
var ErrIntegrity = errors.New("sst: integrity error")
