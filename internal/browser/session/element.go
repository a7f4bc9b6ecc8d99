// internal/browser/session/element.go
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
)

const (
	textFn = `function() { return (this.innerText || this.textContent || "").toString(); }`

	interactableFn = `function() {
	if (!this.isConnected) return false;
	const rect = this.getBoundingClientRect();
	const style = window.getComputedStyle(this);
	if (rect.width === 0 || rect.height === 0) return false;
	if (style.display === 'none' || style.visibility === 'hidden') return false;
	return !this.disabled && this.getAttribute('aria-disabled') !== 'true';
}`

	// clearFn also handles contenteditable prompts, which chromedp.Clear rejects.
	clearFn = `function() {
	if ('value' in this) { this.value = ''; } else { this.textContent = ''; }
	this.dispatchEvent(new Event('input', { bubbles: true }));
}`
)

// element is a DOM node bound to the session it came from.
type element struct {
	session *Session
	node    *cdp.Node
}

var _ locator.Element = (*element)(nil)

func (e *element) ids() []cdp.NodeID { return []cdp.NodeID{e.node.NodeID} }

func (e *element) callFunction(ctx context.Context, fn string, res interface{}) error {
	qctx, cancel := context.WithTimeout(ctx, e.session.opts.QueryTimeout)
	defer cancel()
	return e.session.RunActions(qctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.CallFunctionOnNode(ctx, e.node, fn, res)
	}))
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.callFunction(ctx, textFn, &text); err != nil {
		return "", fmt.Errorf("reading text of <%s>: %w", e.tag(), err)
	}
	return text, nil
}

func (e *element) Interactable(ctx context.Context) (bool, error) {
	var ok bool
	if err := e.callFunction(ctx, interactableFn, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (e *element) Click(ctx context.Context) error {
	qctx, cancel := context.WithTimeout(ctx, e.session.opts.QueryTimeout)
	defer cancel()
	if err := e.session.RunActions(qctx, chromedp.Click(e.ids(), chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("clicking <%s>: %w", e.tag(), err)
	}
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.callFunction(ctx, clearFn, nil); err != nil {
		return fmt.Errorf("clearing <%s>: %w", e.tag(), err)
	}
	return nil
}

// SendKeys types text into the element. File inputs receive text as a path to
// upload instead.
func (e *element) SendKeys(ctx context.Context, text string) error {
	qctx, cancel := context.WithTimeout(ctx, e.session.opts.QueryTimeout)
	defer cancel()

	action := chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID)
	if e.isFileInput() {
		action = chromedp.SetUploadFiles(e.ids(), []string{text}, chromedp.ByNodeID)
	}
	if err := e.session.RunActions(qctx, action); err != nil {
		return fmt.Errorf("sending keys to <%s>: %w", e.tag(), err)
	}
	return nil
}

func (e *element) isFileInput() bool {
	return strings.EqualFold(e.node.NodeName, "input") && strings.EqualFold(e.node.AttributeValue("type"), "file")
}

func (e *element) tag() string { return strings.ToLower(e.node.NodeName) }
