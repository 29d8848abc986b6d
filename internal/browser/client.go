package browser

import "context"

// Engine starts browser processes. Every call to Launch yields a new,
// independent process that is never shared with another caller.
type Engine interface {
	Launch(ctx context.Context, profile Profile) (Process, error)
}

// Process is one running browser owning a single active page.
type Process interface {
	Page() Page
	Close() error
}

// Page defines the page operations used by sessions. Every method honours
// the deadline carried by ctx.
type Page interface {
	// Navigate loads url and returns once the DOM content has been loaded.
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	// WaitElement blocks until selector matches an element in the DOM.
	WaitElement(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Focus(ctx context.Context, selector string) error
	InsertText(ctx context.Context, text string) error
	ScrollIntoView(ctx context.Context, selector string) error
	Text(ctx context.Context, selector string) (string, error)
}
