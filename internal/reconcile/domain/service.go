package domain

import "context"

type Service interface {
	// Reconcile runs one event through decode checks, identity resolution and
	// the idempotent credit. It is safe to invoke concurrently for the same
	// event and for distinct events targeting the same account.
	Reconcile(ctx context.Context, event *PaymentEvent) Result
}
