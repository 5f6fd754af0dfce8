package service

import (
	"github.com/weblogd/weblogd/internal/domain"
	internal_errors "github.com/weblogd/weblogd/internal/errors"
	"github.com/weblogd/weblogd/internal/logger"
	"github.com/weblogd/weblogd/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// Workflow outcomes. Opaque tokens interpreted by the HTTP layer.
const (
	OutcomeDisabled = "disabled"
	OutcomeInput    = "input"
	OutcomeSuccess  = "success"
)

// Activation statuses.
const (
	ActivationPending = "pending"
	ActivationActive  = "active"
	ActivationError   = "error"
)

// Error codes reported to the caller, accumulated in order.
const (
	ErrRegisterDisabled      = "Register.disabled"
	ErrGenericCheckLogs      = "generic.error.check.logs"
	ErrBadUsername           = "error.add.user.badUserName"
	ErrPasswordEmpty         = "error.add.user.passwordEmpty"
	ErrMismatchedPasswords   = "userRegister.error.mismatchedPasswords"
	ErrUsernameInUse         = "error.add.user.userNameInUse"
	ErrCheckingUser          = "error checking for user"
	ErrOpenIDInUse           = "error.add.user.openIdInUse"
	ErrMissingActivationCode = "error.activate.user.missingActivationCode"
	ErrInvalidActivationCode = "error.activate.user.invalidActivationCode"
)

// Runtime property keys consulted by the workflow.
const (
	PropRegistrationEnabled = "users.registration.enabled"
	PropEmailActivation     = "user.account.email.activation"
	PropAllowedChars        = "username.allowedChars"
	PropExternalAuthValue   = "users.passwords.externalAuthValue"
)

const (
	DefaultAllowedChars      = "A-Za-z0-9"
	DefaultExternalAuthValue = "<externalAuth>"

	// Length of generated placeholder credentials for OpenID accounts.
	// Must stay under bcrypt's 72-byte input limit.
	placeholderPasswordLen = 64
)

type UserStorage interface {
	CountUsers() (int, error)
	UserByUsername(username domain.Username) (domain.User, error)
	UserByOpenID(url domain.OpenIDURL) (domain.User, error)
	UserByActivationCode(code string) (domain.User, error)
	CreateUser(user domain.User) (domain.UserId, error)
	UpdateUser(user domain.User) error
}

// PropertyStore reads admin-tunable runtime settings. Values may change
// between calls, which is why the save path re-reads them.
type PropertyStore interface {
	BoolProperty(name string, def bool) (bool, error)
	StringProperty(name string, def string) (string, error)
}

type MailSender interface {
	SendActivationEmail(user domain.User) error
}

// Registration orchestrates new-account creation: pre-fill, validate,
// persist and activate-by-email.
type Registration struct {
	storage    UserStorage
	props      PropertyStore
	mail       MailSender
	authMethod domain.AuthMethod
}

func NewRegistration(storage UserStorage, props PropertyStore, mail MailSender, authMethod domain.AuthMethod) *Registration {
	return &Registration{
		storage:    storage,
		props:      props,
		mail:       mail,
		authMethod: authMethod,
	}
}

// PrepareDefaults carries request-context defaults for a fresh form.
type PrepareDefaults struct {
	Locale   string
	TimeZone string
}

type PrepareResult struct {
	Outcome string
	Errors  []string
	Form    domain.RegistrationRequest
}

// ValidationResult pairs the ordered error codes with an adjusted copy of
// the input (SSO-overwritten credentials, cleared taken identifiers).
type ValidationResult struct {
	Errors  []string
	Request domain.RegistrationRequest
}

func (v ValidationResult) Valid() bool {
	return len(v.Errors) == 0
}

type SaveResult struct {
	Outcome          string
	Errors           []string
	ActivationStatus string
	User             domain.User
}

type ActivateResult struct {
	Status string
	Errors []string
}

// Prepare pre-fills a registration form. Registration is closed when the
// toggle is off and at least one account exists; zero accounts always get
// through so the first user can be created.
func (r *Registration) Prepare(defaults PrepareDefaults, identity *domain.AuthenticatedIdentity) PrepareResult {
	if disabled, err := r.registrationDisabled(); err != nil {
		return PrepareResult{Outcome: OutcomeDisabled, Errors: []string{ErrGenericCheckLogs}}
	} else if disabled {
		return PrepareResult{Outcome: OutcomeDisabled, Errors: []string{ErrRegisterDisabled}}
	}

	form := domain.RegistrationRequest{
		Locale:   defaults.Locale,
		TimeZone: defaults.TimeZone,
	}

	if identity != nil {
		switch r.authMethod {
		case domain.AuthLDAP:
			// Rich attributes come from the directory.
			form.Username = identity.Username
			form.ScreenName = identity.ScreenName
			form.FullName = identity.FullName
			form.Email = identity.Email
		case domain.AuthCMA:
			// Only detail we get is the principal name.
			form.Username = identity.Username
			form.ScreenName = identity.Username
		}
	}

	return PrepareResult{Outcome: OutcomeInput, Form: form}
}

// Validate checks a registration request without persisting anything.
// It returns the ordered error codes (empty = valid) and the adjusted
// request to use for persistence.
func (r *Registration) Validate(req domain.RegistrationRequest, identity *domain.AuthenticatedIdentity) ValidationResult {
	var errs []string

	// With external auth the HTML form arrives with empty credentials;
	// store a placeholder passphrase and the externally provided username.
	if r.authMethod.UsesSSO() && identity != nil {
		placeholder, err := r.props.StringProperty(PropExternalAuthValue, DefaultExternalAuthValue)
		if err != nil {
			logger.Log.Error("failed to read external auth placeholder", "error", err)
			placeholder = DefaultExternalAuthValue
		}
		req.Username = identity.Username
		req.Password = placeholder
		req.PasswordConfirm = placeholder
	}

	allowed, err := r.props.StringProperty(PropAllowedChars, DefaultAllowedChars)
	if err != nil {
		logger.Log.Error("failed to read allowed username chars", "error", err)
		allowed = DefaultAllowedChars
	}
	if !matchesCharset(req.Username, allowed) {
		errs = append(errs, ErrBadUsername)
	}

	// Password is mandatory when local database auth is the only option.
	if r.authMethod == domain.AuthDB && req.Password == "" {
		errs = append(errs, ErrPasswordEmpty)
		return ValidationResult{Errors: errs, Request: req}
	}

	// The stored credential must never be empty, so OpenID accounts get a
	// random placeholder the user never sees.
	if r.authMethod == domain.AuthOpenID ||
		(r.authMethod == domain.AuthDBOpenID && req.OpenIDURL != "") {
		random := utils.RandomAlphanumeric(placeholderPasswordLen)
		req.Password = random
		req.PasswordConfirm = random
	}

	if req.Password != req.PasswordConfirm {
		errs = append(errs, ErrMismatchedPasswords)
	}

	if req.Username != "" {
		if _, err := r.storage.UserByUsername(req.Username); err == nil {
			errs = append(errs, ErrUsernameInUse)
			// reset so the form re-renders empty
			req.Username = ""
		} else if !internal_errors.IsNotFound(err) {
			logger.Log.Error("error checking for user", "username", req.Username, "error", err)
			errs = append(errs, ErrCheckingUser)
		}
	}

	if req.OpenIDURL != "" {
		if _, err := r.storage.UserByOpenID(domain.NewOpenIDURL(req.OpenIDURL)); err == nil {
			errs = append(errs, ErrOpenIDInUse)
			req.OpenIDURL = ""
		} else if !internal_errors.IsNotFound(err) {
			logger.Log.Error("error checking OpenID URL", "error", err)
			errs = append(errs, ErrGenericCheckLogs)
		}
	}

	return ValidationResult{Errors: errs, Request: req}
}

// Save validates and persists a new account. The disabled condition is
// re-checked here because the runtime toggle can flip between the prepare
// and save requests.
func (r *Registration) Save(req domain.RegistrationRequest, identity *domain.AuthenticatedIdentity) SaveResult {
	if disabled, err := r.registrationDisabled(); err != nil || disabled {
		return SaveResult{Outcome: OutcomeDisabled, Errors: []string{ErrRegisterDisabled}}
	}

	v := r.Validate(req, identity)
	if !v.Valid() {
		return SaveResult{Outcome: OutcomeInput, Errors: v.Errors}
	}
	req = v.Request

	user := domain.User{
		Username:   req.Username,
		ScreenName: req.ScreenName,
		FullName:   req.FullName,
		Email:      req.Email,
		Locale:     req.Locale,
		TimeZone:   req.TimeZone,
		Enabled:    true,
	}

	// If the user set both password fields, store the credential hash.
	if req.Password != "" && req.PasswordConfirm != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Log.Error("failed to hash password", "error", err)
			return SaveResult{Outcome: OutcomeInput, Errors: []string{ErrGenericCheckLogs}}
		}
		user.PassHash = string(hash)
	}

	activationEnabled, err := r.props.BoolProperty(PropEmailActivation, false)
	if err != nil {
		logger.Log.Error("failed to read activation setting", "error", err)
		return SaveResult{Outcome: OutcomeInput, Errors: []string{ErrGenericCheckLogs}}
	}
	if activationEnabled {
		// Account stays disabled until the emailed code comes back.
		user.Enabled = false
		user.ActivationCode = utils.NewActivationCode()
	}

	if req.OpenIDURL != "" {
		user.OpenIDURL = domain.NewOpenIDURL(req.OpenIDURL)
	}

	id, err := r.storage.CreateUser(user)
	if err != nil {
		logger.Log.Error("error adding new user", "username", user.Username, "error", err)
		return SaveResult{Outcome: OutcomeInput, Errors: []string{ErrGenericCheckLogs}}
	}
	user.Id = id

	result := SaveResult{Outcome: OutcomeSuccess, User: user}

	if activationEnabled && user.ActivationCode != "" {
		// Best effort: an undeliverable email must not fail the signup.
		if err := r.mail.SendActivationEmail(user); err != nil {
			logger.Log.Error("failed to send activation email", "username", user.Username, "error", err)
		}
		result.ActivationStatus = ActivationPending
	}

	return result
}

// Activate flips the pending account matching code to enabled and clears
// the code. A second call with the same code reports invalid-code since no
// account matches anymore.
func (r *Registration) Activate(code string) ActivateResult {
	if code == "" {
		return ActivateResult{Status: ActivationError, Errors: []string{ErrMissingActivationCode}}
	}

	user, err := r.storage.UserByActivationCode(code)
	if err != nil {
		if internal_errors.IsNotFound(err) {
			return ActivateResult{Status: ActivationError, Errors: []string{ErrInvalidActivationCode}}
		}
		logger.Log.Error("error activating user", "error", err)
		return ActivateResult{Status: ActivationError, Errors: []string{err.Error()}}
	}

	user.Enabled = true
	user.ActivationCode = ""
	if err := r.storage.UpdateUser(user); err != nil {
		logger.Log.Error("error activating user", "username", user.Username, "error", err)
		return ActivateResult{Status: ActivationError, Errors: []string{err.Error()}}
	}

	return ActivateResult{Status: ActivationActive}
}

func (r *Registration) registrationDisabled() (bool, error) {
	enabled, err := r.props.BoolProperty(PropRegistrationEnabled, true)
	if err != nil {
		logger.Log.Error("error checking registration setting", "error", err)
		return true, err
	}
	if enabled {
		return false, nil
	}
	count, err := r.storage.CountUsers()
	if err != nil {
		logger.Log.Error("error checking user count", "error", err)
		return true, err
	}
	// Zero accounts: allow creation of the first user.
	return count != 0, nil
}

// matchesCharset reports whether every rune of s belongs to a charset spec
// like "A-Za-z0-9" (single characters and dash ranges). The empty string
// always matches.
func matchesCharset(s, spec string) bool {
	type runeRange struct{ lo, hi rune }
	var ranges []runeRange

	runes := []rune(spec)
	for i := 0; i < len(runes); {
		if i+2 < len(runes) && runes[i+1] == '-' {
			ranges = append(ranges, runeRange{runes[i], runes[i+2]})
			i += 3
		} else {
			ranges = append(ranges, runeRange{runes[i], runes[i]})
			i++
		}
	}

	for _, c := range s {
		ok := false
		for _, rr := range ranges {
			if c >= rr.lo && c <= rr.hi {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
