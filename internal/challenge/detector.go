// internal/challenge/detector.go
package challenge

import "strings"

// Default markers. A page must show one of each kind to count as a challenge.
var (
	DefaultProviderMarkers     = []string{"cloudflare"}
	DefaultVerificationMarkers = []string{"checking your browser", "verifying you are human"}
)

// Detector is a best-effort heuristic for anti-bot interstitials. It is a
// substring check on page text, so false negatives are expected.
type Detector struct {
	providers     []string
	verifications []string
}

// NewDetector builds a detector with the default markers.
func NewDetector() *Detector {
	return NewDetectorWithMarkers(DefaultProviderMarkers, DefaultVerificationMarkers)
}

// NewDetectorWithMarkers builds a detector from custom marker lists. Markers are
// matched case-insensitively. Empty lists fall back to the defaults.
func NewDetectorWithMarkers(providers, verifications []string) *Detector {
	if len(providers) == 0 {
		providers = DefaultProviderMarkers
	}
	if len(verifications) == 0 {
		verifications = DefaultVerificationMarkers
	}
	return &Detector{
		providers:     lowerAll(providers),
		verifications: lowerAll(verifications),
	}
}

// Detect reports whether pageContent carries both a provider marker and a
// verification marker.
func (d *Detector) Detect(pageContent string) bool {
	content := strings.ToLower(pageContent)
	return containsAny(content, d.providers) && containsAny(content, d.verifications)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
