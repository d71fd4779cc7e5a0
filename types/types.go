package types

import "time"

type LifecycleManager interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// Clock is the time source for TTL bookkeeping and monitor windows.
type Clock interface {
	Now() time.Time
}
