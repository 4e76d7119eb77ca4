// Package notify provides the process-wide notification channel driven by
// store mutations. Stores publish ephemeral events (a login succeeded, a
// cart mutation rolled back) and consumers such as the CLI renderer or the
// telemetry handlers subscribe to them. Delivery is best-effort: a slow
// subscriber drops events rather than blocking a store operation.
package notify

import "time"

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Op identifies the store operation an event belongs to.
type Op string

const (
	OpLogin          Op = "auth.login"
	OpRegister       Op = "auth.register"
	OpLogout         Op = "auth.logout"
	OpRestore        Op = "auth.restore"
	OpUpdateUser     Op = "auth.update_user"
	OpAuthExpired    Op = "auth.expired"
	OpCartAdd        Op = "cart.add"
	OpCartUpdate     Op = "cart.update"
	OpCartRemove     Op = "cart.remove"
	OpCartClear      Op = "cart.clear"
	OpCartLoad       Op = "cart.load"
	OpCatalogFetch   Op = "catalog.fetch"
	OpCachePrune     Op = "cache.prune"
	OpSessionRecheck Op = "auth.recheck"
)

// Stage marks where in an operation's lifecycle an event was emitted.
type Stage string

const (
	StageStarted   Stage = "started"
	StageSucceeded Stage = "succeeded"
	StageFailed    Stage = "failed"
)

// Event is one ephemeral notification.
type Event struct {
	// Time is when the event was emitted.
	Time time.Time

	// Op is the originating store operation.
	Op Op

	// Stage is the lifecycle point within the operation.
	Stage Stage

	// Level is the display severity.
	Level Level

	// Message is the human-readable toast text.
	Message string

	// Err is the error string for failed stages, empty otherwise.
	Err string

	// Elapsed is how long the operation took; only set on terminal stages.
	Elapsed time.Duration
}

// Bus distributes events to subscribers.
type Bus interface {
	// Publish sends an event to all matching subscribers.
	Publish(event Event)

	// Subscribe registers a subscriber for a specific operation.
	// Returns a Subscription that must be closed when done.
	Subscribe(op Op) Subscription

	// SubscribeAll registers a subscriber that receives every event.
	// Returns a Subscription that must be closed when done.
	SubscribeAll() Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns the subscription's event channel.
	Events() <-chan Event

	// Close unsubscribes and releases resources.
	Close() error
}
