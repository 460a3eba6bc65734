package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned by Submit before Start or after Stop
	ErrSchedulerNotRunning = errors.New("scheduler: sync pool is not running")

	// ErrJobQueueFull is returned when every queue slot holds a pending merchant
	ErrJobQueueFull = errors.New("scheduler: sync queue is full")

	// ErrInvalidConfig is returned for non-positive pool sizes, timeouts or intervals
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")
)
