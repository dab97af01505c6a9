package lock

import "errors"

// ErrLocked is returned by TryWithLock when the key is already held.
var ErrLocked = errors.New("key is locked")
