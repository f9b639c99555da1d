package service

import "context"

// Service is a long-running component of the gateway. Run blocks until the
// context is cancelled or the service fails.
type Service interface {
	Run(ctx context.Context) error
}
