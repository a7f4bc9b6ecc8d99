// internal/chat/targets.go
package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
	"github.com/xkilldash9x/chatpilot/internal/login"
)

// ModelPlaceholder is replaced by the requested model name in model option
// selectors. XPath selectors receive it as a quoted literal.
const ModelPlaceholder = "{model}"

// Targets holds the locator sets for every UI element the client touches.
type Targets struct {
	Login        login.Targets
	ModelMenu    locator.Set
	AttachButton locator.Set
	FileInput    locator.Set
	Prompt       locator.Set
	Response     locator.Set
	// ModelOption holds templates containing ModelPlaceholder.
	ModelOption []locator.Locator
}

// DefaultTargets returns selectors for the stock chat UI.
func DefaultTargets() Targets {
	return Targets{
		Login: login.DefaultTargets(),
		ModelMenu: locator.MustSet(
			locator.ByCSS("button.model-selector-button"),
			locator.ByXPath("//button[contains(@class,'model-menu')]"),
			locator.ByCSS("button[data-testid='model-switcher-dropdown-button']"),
		),
		AttachButton: locator.MustSet(
			locator.ByCSS("button.attach-image"),
			locator.ByXPath("//button[contains(@class,'attach-image')]"),
		),
		FileInput: locator.MustSet(
			locator.ByCSS("input[type='file']"),
		),
		Prompt: locator.MustSet(
			locator.ByID("prompt-textarea"),
			locator.ByCSS("textarea"),
		),
		Response: locator.MustSet(
			locator.ByCSS(".markdown.prose p"),
			locator.ByCSS("div[data-message-author-role='assistant'] p"),
		),
		ModelOption: []locator.Locator{
			locator.ByXPath("//div[contains(@class,'model-option') and contains(text()," + ModelPlaceholder + ")]"),
			locator.ByXPath("//button[contains(text()," + ModelPlaceholder + ")]"),
		},
	}
}

// ModelOptionSet instantiates the model option templates for model.
func (t Targets) ModelOptionSet(model string) (locator.Set, error) {
	out := make([]locator.Locator, 0, len(t.ModelOption))
	for _, tmpl := range t.ModelOption {
		sub := model
		if tmpl.Strategy == locator.StrategyXPath {
			sub = locator.XPathLiteral(model)
		}
		l := tmpl
		l.Value = strings.ReplaceAll(tmpl.Value, ModelPlaceholder, sub)
		out = append(out, l)
	}
	return locator.NewSet(out...)
}

// Override replaces the sets named in overrides. Keys are the target names
// used under session.selectors in the config file.
func (t Targets) Override(overrides map[string][]string) (Targets, error) {
	sets := map[string]*locator.Set{
		"login_button":    &t.Login.LoginButton,
		"email_input":     &t.Login.EmailInput,
		"email_submit":    &t.Login.EmailSubmit,
		"password_input":  &t.Login.PasswordInput,
		"password_submit": &t.Login.PasswordSubmit,
		"ready":           &t.Login.Ready,
		"model_menu":      &t.ModelMenu,
		"attach_button":   &t.AttachButton,
		"file_input":      &t.FileInput,
		"prompt":          &t.Prompt,
		"response":        &t.Response,
	}

	// Sorted so the first reported error is stable.
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := overrides[key]
		if key == "model_option" {
			set, err := locator.ParseSet(raw)
			if err != nil {
				return t, fmt.Errorf("selector override %q: %w", key, err)
			}
			t.ModelOption = set.Locators()
			continue
		}
		dst, ok := sets[key]
		if !ok {
			return t, fmt.Errorf("unknown selector target %q", key)
		}
		set, err := locator.ParseSet(raw)
		if err != nil {
			return t, fmt.Errorf("selector override %q: %w", key, err)
		}
		*dst = set
	}
	return t, nil
}

// withDefaults fills empty sets from DefaultTargets. Login sets are filled by
// the login package.
func (t Targets) withDefaults() Targets {
	d := DefaultTargets()
	for _, pair := range []struct{ dst, def *locator.Set }{
		{&t.ModelMenu, &d.ModelMenu},
		{&t.AttachButton, &d.AttachButton},
		{&t.FileInput, &d.FileInput},
		{&t.Prompt, &d.Prompt},
		{&t.Response, &d.Response},
	} {
		if pair.dst.Len() == 0 {
			*pair.dst = *pair.def
		}
	}
	if len(t.ModelOption) == 0 {
		t.ModelOption = d.ModelOption
	}
	return t
}
