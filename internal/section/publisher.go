package section

import (
	"context"
	"errors"

	"hllstatus/internal/store"
)

var (
	// ErrNotFound means the message to edit no longer exists.
	ErrNotFound = errors.New("message not found")
	// ErrRateLimited means the messaging endpoint asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
)

// Publisher creates and edits messages on a messaging endpoint.
//
// Edit must return an error wrapping ErrNotFound when h is gone, and both
// methods must wrap ErrRateLimited for rate-limit responses.
type Publisher interface {
	Create(ctx context.Context, c Content) (store.Handle, error)
	Edit(ctx context.Context, h store.Handle, c Content) (store.Handle, error)
}

// Recorder holds the last published handle per section key.
type Recorder interface {
	Get(key string) store.Handle
	Set(ctx context.Context, key string, h store.Handle) error
}

// Builder produces one cycle's content. A builder error means "no content
// this cycle"; it never stops the scheduler.
type Builder interface {
	Build(ctx context.Context) (Content, error)
}

type BuilderFunc func(ctx context.Context) (Content, error)

func (f BuilderFunc) Build(ctx context.Context) (Content, error) { return f(ctx) }
