package session

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
)

func TestParseSwitch(t *testing.T) {
	tests := []struct {
		arg       string
		wantName  string
		wantValue interface{}
		wantOK    bool
	}{
		{"--no-zygote", "no-zygote", true, true},
		{"disable-extensions", "disable-extensions", true, true},
		{"--proxy-server=http://127.0.0.1:8080", "proxy-server", "http://127.0.0.1:8080", true},
		{"--=oops", "", nil, false},
		{"   ", "", nil, false},
		{"--", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			name, value, ok := parseSwitch(tt.arg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantName, name)
				assert.Equal(t, tt.wantValue, value)
			}
		})
	}
}

func TestExecAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions) + 3

	minimal := ExecAllocatorOptions(Options{})
	assert.Len(t, minimal, base)

	full := ExecAllocatorOptions(Options{
		Headless:     true,
		WindowWidth:  1280,
		WindowHeight: 720,
		Lang:         "en-US",
		Incognito:    true,
		ExecPath:     "/usr/bin/chromium",
		Args:         []string{"--no-zygote", "", "window-position=0,0"},
	})
	// GPU, window size, lang, incognito, exec path and the two valid args.
	assert.Len(t, full, base+7)
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.False(t, o.Headless)
	assert.True(t, o.Incognito)
	assert.Equal(t, "headless=false window=1920x1080 lang=en-US", o.String())
	assert.Positive(t, o.PageLoadTimeout)
	assert.Positive(t, o.QueryTimeout)
}
