// Package actor implements the service-host framework the rest of the core
// is built on: addressable services with bounded inboxes, multi-listener
// event dispatchers, a singleton registry, and a ready barrier that lets
// services spawned during startup wait for the host to finish wiring before
// they begin processing messages.
package actor

import "errors"

// Registry and service-lifecycle errors.
var (
	ErrServiceNotAlive          = errors.New("actor: service is not alive")
	ErrServiceNotRegistered     = errors.New("actor: service type is not registered")
	ErrServiceAlreadyRegistered = errors.New("actor: service type is already registered")
	ErrServiceTypeMismatch      = errors.New("actor: registered handle has an unexpected type")
)

// Callback errors.
var (
	ErrCallbackAlreadyResolved = errors.New("actor: callback already resolved")
	ErrCallbackSenderDropped   = errors.New("actor: callback receiver is gone")
	ErrCallbackOwnerDropped    = errors.New("actor: callback sender was dropped without resolving")
)
