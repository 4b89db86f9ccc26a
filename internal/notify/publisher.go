package notify

import (
	"context"

	"multisig-dashboard/internal/model"
)

// Publisher announces proposal lifecycle events. Publishing is best effort:
// an action that reached the chain is never undone by a failed publish.
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, model.Event) error { return nil }

func (Nop) Close() error { return nil }
