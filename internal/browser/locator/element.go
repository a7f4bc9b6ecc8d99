// internal/browser/locator/element.go
package locator

import "context"

// Element is a handle to one node in the live page, as returned by a Finder.
type Element interface {
	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	// SendKeys types text into the element. File inputs receive the text as a path to upload.
	SendKeys(ctx context.Context, text string) error
	// Interactable reports whether the element is displayed and enabled.
	Interactable(ctx context.Context) (bool, error)
}

// Finder queries the page for elements. Find returns (nil, nil) when nothing
// matches; it never waits.
type Finder interface {
	Find(ctx context.Context, loc Locator) (Element, error)
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
}

// Readiness is the predicate an element must satisfy to be returned by Resolve.
type Readiness int

const (
	// Present only requires the element to exist in the DOM.
	Present Readiness = iota
	// Clickable requires the element to exist, be displayed and be enabled.
	Clickable
)

func (r Readiness) String() string {
	if r == Clickable {
		return "clickable"
	}
	return "present"
}
