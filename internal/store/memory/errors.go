package memory

import "errors"

// errPersistUnavailable simulates a storage write failure.
var errPersistUnavailable = errors.New("notification store unavailable")
