package domain

// AuthMethod selects how users authenticate. Fixed at startup.
type AuthMethod string

const (
	AuthDB       AuthMethod = "db"        // local database passwords only
	AuthLDAP     AuthMethod = "ldap"      // external LDAP, rich SSO attributes
	AuthCMA      AuthMethod = "cma"       // container-managed auth, username only
	AuthOpenID   AuthMethod = "openid"    // OpenID only
	AuthDBOpenID AuthMethod = "db-openid" // local passwords or OpenID
)

// UsesSSO reports whether an externally authenticated identity replaces
// locally entered credentials.
func (m AuthMethod) UsesSSO() bool {
	return m == AuthLDAP || m == AuthCMA
}

// AuthenticatedIdentity is an externally authenticated principal supplied
// explicitly by the caller (session middleware), never read from ambient
// request state. For CMA only Username is populated; LDAP also carries
// directory attributes.
type AuthenticatedIdentity struct {
	Username   string
	ScreenName string
	FullName   string
	Email      string
}

// RegistrationRequest is the immutable input of one registration attempt.
// Validation returns an adjusted copy rather than mutating it in place.
type RegistrationRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	ScreenName      string `json:"screenName"`
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Locale          string `json:"locale"`
	TimeZone        string `json:"timeZone"`
	OpenIDURL       string `json:"openIdUrl"`
}
