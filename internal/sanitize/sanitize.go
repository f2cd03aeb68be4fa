// Package sanitize cleans user-supplied text before it is stored or echoed
// back. Usernames are displayed in the staff panel, on profiles, and on
// leaderboards, so any markup smuggled into them must be stripped at the
// boundary. Uses bluemonday's strict policy, which removes all HTML.
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton bluemonday policy for stripping markup from plain
// text fields. Initialized once via sync.Once for thread-safe lazy init.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared sanitization policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		// StrictPolicy strips every tag and attribute. Usernames are plain
		// text; there is nothing to preserve.
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Username strips HTML and surrounding whitespace from a user-supplied
// username. This MUST be called before a username is persisted.
func Username(input string) string {
	return strings.TrimSpace(getPolicy().Sanitize(input))
}
