// SPDX-License-Identifier: MIT

// Package creds resolves camera endpoints into authenticated connection
// targets and produces redacted forms safe for logging.
package creds

import (
	"errors"
	"fmt"
	"net/url"
)

// Mask replaces embedded secrets in redacted connection targets.
const Mask = "****"

// ErrMalformedTarget marks base connection strings that cannot be parsed
// into scheme, authority and path. Not retryable.
var ErrMalformedTarget = errors.New("malformed connection target")

// Target is a fully resolved connection target. URL carries credentials and
// must never be logged; Redacted is the loggable form.
type Target struct {
	URL      string
	Redacted string
}

// Resolve builds the connection target for a camera.
//
// If the base URL already embeds user-info it is authoritative and returned
// unchanged, so explicit credentials are never double-encoded. Otherwise the
// username and secret, when present, are percent-encoded per user-info rules
// and embedded. Anonymous cameras (no username) pass through unchanged.
func Resolve(base, username, secret string) (Target, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %q: %v", ErrMalformedTarget, base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Target{}, fmt.Errorf("%w: %q: missing scheme or host", ErrMalformedTarget, base)
	}

	if u.User != nil {
		return Target{URL: base, Redacted: redactURL(u)}, nil
	}
	if username == "" {
		return Target{URL: base, Redacted: base}, nil
	}

	if secret == "" {
		// Some devices accept the bare username or prompt for the secret.
		u.User = url.User(username)
	} else {
		u.User = url.UserPassword(username, secret)
	}
	return Target{URL: u.String(), Redacted: redactURL(u)}, nil
}

// Redact returns a loggable form of a raw connection target, with any
// embedded secret replaced by the mask token.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-target-redacted"
	}
	return redactURL(u)
}

func redactURL(u *url.URL) string {
	if u.User == nil {
		return u.String()
	}
	clone := *u
	if _, hasSecret := u.User.Password(); hasSecret {
		clone.User = url.UserPassword(u.User.Username(), Mask)
	}
	return clone.String()
}
