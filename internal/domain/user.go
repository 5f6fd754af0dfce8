package domain

import (
	"strings"
	"time"
)

type (
	UserId   = int64
	Username = string
)

// User is a weblog platform account.
//
// ActivationCode is non-empty only while the account awaits email
// activation (Enabled is false in that case); activating clears it.
type User struct {
	Id             UserId
	Username       Username
	ScreenName     string
	FullName       string
	Email          string
	Locale         string
	TimeZone       string
	PassHash       string
	Enabled        bool
	ActivationCode string
	OpenIDURL      OpenIDURL
	CreatedAt      time.Time
}

// OpenIDURL is a normalized OpenID identifier. Use NewOpenIDURL to build
// one; "http://x/" and "http://x" denote the same identity.
type OpenIDURL string

// NewOpenIDURL strips a single trailing slash so equal identities compare
// equal. Normalization is idempotent.
func NewOpenIDURL(raw string) OpenIDURL {
	return OpenIDURL(strings.TrimSuffix(raw, "/"))
}

func (u OpenIDURL) String() string {
	return string(u)
}
