// Package system manages the lifecycle of background components.
package system

import "context"

// Service is a lifecycle-managed component. Background modules implement it
// so the manager can start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
