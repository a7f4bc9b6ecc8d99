// internal/browser/session/query.go
package session

import (
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
)

// queryBy is the chromedp lookup family a locator compiles to.
type queryBy int

const (
	byID queryBy = iota
	byQueryAll
	bySearch
)

// query is a locator compiled to a chromedp selector.
type query struct {
	selector string
	by       queryBy
}

// compile maps each strategy onto a chromedp query. Text locators become
// XPath so DOM.performSearch can evaluate them.
func compile(l locator.Locator) (query, error) {
	if l.Value == "" {
		return query{}, fmt.Errorf("locator %s has no value", l)
	}
	switch l.Strategy {
	case locator.StrategyID:
		return query{selector: l.Value, by: byID}, nil
	case locator.StrategyCSS:
		return query{selector: l.Value, by: byQueryAll}, nil
	case locator.StrategyXPath, locator.StrategyTextContains:
		return query{selector: l.XPath(), by: bySearch}, nil
	default:
		return query{}, fmt.Errorf("unsupported locator strategy %s", l.Strategy)
	}
}

func (q query) option() chromedp.QueryOption {
	switch q.by {
	case byID:
		return chromedp.ByID
	case bySearch:
		return chromedp.BySearch
	default:
		return chromedp.ByQueryAll
	}
}
