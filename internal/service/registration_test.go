package service

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weblogd/weblogd/internal/domain"
	internal_errors "github.com/weblogd/weblogd/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// --- Mocks ---

var errNotFound = &internal_errors.ErrorWithStatusCode{Message: "User not found", StatusCode: http.StatusNotFound}

type MockUserStorage struct {
	CountUsersFunc           func() (int, error)
	UserByUsernameFunc       func(username domain.Username) (domain.User, error)
	UserByOpenIDFunc         func(url domain.OpenIDURL) (domain.User, error)
	UserByActivationCodeFunc func(code string) (domain.User, error)
	CreateUserFunc           func(user domain.User) (domain.UserId, error)
	UpdateUserFunc           func(user domain.User) error
}

func (m *MockUserStorage) CountUsers() (int, error) {
	if m.CountUsersFunc != nil {
		return m.CountUsersFunc()
	}
	return 1, nil
}

func (m *MockUserStorage) UserByUsername(username domain.Username) (domain.User, error) {
	if m.UserByUsernameFunc != nil {
		return m.UserByUsernameFunc(username)
	}
	return domain.User{}, errNotFound
}

func (m *MockUserStorage) UserByOpenID(url domain.OpenIDURL) (domain.User, error) {
	if m.UserByOpenIDFunc != nil {
		return m.UserByOpenIDFunc(url)
	}
	return domain.User{}, errNotFound
}

func (m *MockUserStorage) UserByActivationCode(code string) (domain.User, error) {
	if m.UserByActivationCodeFunc != nil {
		return m.UserByActivationCodeFunc(code)
	}
	return domain.User{}, errNotFound
}

func (m *MockUserStorage) CreateUser(user domain.User) (domain.UserId, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(user)
	}
	return 1, nil
}

func (m *MockUserStorage) UpdateUser(user domain.User) error {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(user)
	}
	return nil
}

type MockPropertyStore struct {
	BoolPropertyFunc   func(name string, def bool) (bool, error)
	StringPropertyFunc func(name string, def string) (string, error)
}

func (m *MockPropertyStore) BoolProperty(name string, def bool) (bool, error) {
	if m.BoolPropertyFunc != nil {
		return m.BoolPropertyFunc(name, def)
	}
	return def, nil
}

func (m *MockPropertyStore) StringProperty(name string, def string) (string, error) {
	if m.StringPropertyFunc != nil {
		return m.StringPropertyFunc(name, def)
	}
	return def, nil
}

type MockMailSender struct {
	SendActivationEmailFunc func(user domain.User) error
	Sent                    []domain.User
}

func (m *MockMailSender) SendActivationEmail(user domain.User) error {
	m.Sent = append(m.Sent, user)
	if m.SendActivationEmailFunc != nil {
		return m.SendActivationEmailFunc(user)
	}
	return nil
}

// boolProps returns a property mock serving the given boolean settings.
func boolProps(values map[string]bool) *MockPropertyStore {
	return &MockPropertyStore{
		BoolPropertyFunc: func(name string, def bool) (bool, error) {
			if v, ok := values[name]; ok {
				return v, nil
			}
			return def, nil
		},
	}
}

func validRequest() domain.RegistrationRequest {
	return domain.RegistrationRequest{
		Username:        "scott",
		Password:        "tiger",
		PasswordConfirm: "tiger",
		ScreenName:      "Scott",
		FullName:        "Scott Tiger",
		Email:           "scott@example.com",
		Locale:          "en-US",
		TimeZone:        "UTC",
	}
}

// --- Tests ---

func TestPrepare(t *testing.T) {
	t.Run("disabled with existing accounts", func(t *testing.T) {
		storage := &MockUserStorage{CountUsersFunc: func() (int, error) { return 3, nil }}
		props := boolProps(map[string]bool{PropRegistrationEnabled: false})
		service := NewRegistration(storage, props, &MockMailSender{}, domain.AuthDB)

		result := service.Prepare(PrepareDefaults{}, nil)

		assert.Equal(t, OutcomeDisabled, result.Outcome)
		assert.Equal(t, []string{ErrRegisterDisabled}, result.Errors)
	})

	t.Run("disabled but zero accounts allows bootstrap", func(t *testing.T) {
		storage := &MockUserStorage{CountUsersFunc: func() (int, error) { return 0, nil }}
		props := boolProps(map[string]bool{PropRegistrationEnabled: false})
		service := NewRegistration(storage, props, &MockMailSender{}, domain.AuthDB)

		result := service.Prepare(PrepareDefaults{Locale: "de-DE", TimeZone: "Europe/Berlin"}, nil)

		assert.Equal(t, OutcomeInput, result.Outcome)
		assert.Empty(t, result.Errors)
		assert.Equal(t, "de-DE", result.Form.Locale)
		assert.Equal(t, "Europe/Berlin", result.Form.TimeZone)
	})

	t.Run("settings lookup failure reports unavailable", func(t *testing.T) {
		props := &MockPropertyStore{
			BoolPropertyFunc: func(name string, def bool) (bool, error) {
				return def, errors.New("mock settings error")
			},
		}
		service := NewRegistration(&MockUserStorage{}, props, &MockMailSender{}, domain.AuthDB)

		result := service.Prepare(PrepareDefaults{}, nil)

		assert.Equal(t, OutcomeDisabled, result.Outcome)
		assert.Equal(t, []string{ErrGenericCheckLogs}, result.Errors)
	})

	t.Run("ldap identity prefills directory attributes", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthLDAP)
		identity := &domain.AuthenticatedIdentity{
			Username:   "jdoe",
			ScreenName: "JD",
			FullName:   "Jane Doe",
			Email:      "jdoe@corp.example.com",
		}

		result := service.Prepare(PrepareDefaults{}, identity)

		require.Equal(t, OutcomeInput, result.Outcome)
		assert.Equal(t, "jdoe", result.Form.Username)
		assert.Equal(t, "JD", result.Form.ScreenName)
		assert.Equal(t, "Jane Doe", result.Form.FullName)
		assert.Equal(t, "jdoe@corp.example.com", result.Form.Email)
	})

	t.Run("cma identity prefills username only", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthCMA)
		identity := &domain.AuthenticatedIdentity{Username: "jdoe", FullName: "Jane Doe"}

		result := service.Prepare(PrepareDefaults{}, identity)

		require.Equal(t, OutcomeInput, result.Outcome)
		assert.Equal(t, "jdoe", result.Form.Username)
		assert.Equal(t, "jdoe", result.Form.ScreenName)
		assert.Empty(t, result.Form.FullName)
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid local request", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		v := service.Validate(validRequest(), nil)

		assert.True(t, v.Valid())
		assert.Equal(t, "scott", v.Request.Username)
	})

	t.Run("bad username characters", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		for _, username := range []string{"bad name", "bad.name", "bad/name", "støtte"} {
			req := validRequest()
			req.Username = username
			v := service.Validate(req, nil)
			assert.Contains(t, v.Errors, ErrBadUsername, "username %q", username)
		}
	})

	t.Run("empty password is terminal for local auth", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)
		req := validRequest()
		req.Password = ""
		req.PasswordConfirm = "whatever"

		v := service.Validate(req, nil)

		// validation stops at the empty password, the mismatch is not reported
		assert.Equal(t, []string{ErrPasswordEmpty}, v.Errors)
	})

	t.Run("mismatched passwords", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)
		req := validRequest()
		req.PasswordConfirm = "other"

		v := service.Validate(req, nil)

		assert.Equal(t, []string{ErrMismatchedPasswords}, v.Errors)
	})

	t.Run("openid auth generates placeholder credential", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthOpenID)
		req := validRequest()
		req.Password = ""
		req.PasswordConfirm = ""
		req.OpenIDURL = "https://id.example.com/scott"

		v := service.Validate(req, nil)

		assert.True(t, v.Valid())
		assert.NotEmpty(t, v.Request.Password)
		assert.Equal(t, v.Request.Password, v.Request.PasswordConfirm)
	})

	t.Run("db-openid without openid url keeps entered password", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDBOpenID)
		req := validRequest()

		v := service.Validate(req, nil)

		assert.True(t, v.Valid())
		assert.Equal(t, "tiger", v.Request.Password)
	})

	t.Run("username taken clears the field", func(t *testing.T) {
		storage := &MockUserStorage{
			UserByUsernameFunc: func(username domain.Username) (domain.User, error) {
				return domain.User{Id: 7, Username: username}, nil
			},
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		v := service.Validate(validRequest(), nil)

		assert.Equal(t, []string{ErrUsernameInUse}, v.Errors)
		assert.Empty(t, v.Request.Username)
	})

	t.Run("username lookup failure is a validation error", func(t *testing.T) {
		storage := &MockUserStorage{
			UserByUsernameFunc: func(username domain.Username) (domain.User, error) {
				return domain.User{}, errors.New("mock storage error")
			},
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		v := service.Validate(validRequest(), nil)

		assert.Equal(t, []string{ErrCheckingUser}, v.Errors)
	})

	t.Run("openid url taken clears the field", func(t *testing.T) {
		var lookedUp domain.OpenIDURL
		storage := &MockUserStorage{
			UserByOpenIDFunc: func(url domain.OpenIDURL) (domain.User, error) {
				lookedUp = url
				return domain.User{Id: 7}, nil
			},
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)
		req := validRequest()
		req.OpenIDURL = "https://id.example.com/scott/"

		v := service.Validate(req, nil)

		assert.Equal(t, []string{ErrOpenIDInUse}, v.Errors)
		assert.Empty(t, v.Request.OpenIDURL)
		// lookup happens on the normalized identifier
		assert.Equal(t, domain.NewOpenIDURL("https://id.example.com/scott"), lookedUp)
	})

	t.Run("sso identity overwrites credentials", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthLDAP)
		req := validRequest()
		req.Username = "forged"
		req.Password = ""
		req.PasswordConfirm = ""
		identity := &domain.AuthenticatedIdentity{Username: "jdoe"}

		v := service.Validate(req, identity)

		assert.True(t, v.Valid())
		assert.Equal(t, "jdoe", v.Request.Username)
		assert.Equal(t, DefaultExternalAuthValue, v.Request.Password)
		assert.Equal(t, DefaultExternalAuthValue, v.Request.PasswordConfirm)
	})
}

func TestSave(t *testing.T) {
	t.Run("successful local registration", func(t *testing.T) {
		var created *domain.User
		storage := &MockUserStorage{
			CreateUserFunc: func(user domain.User) (domain.UserId, error) {
				created = &user
				return 42, nil
			},
		}
		mail := &MockMailSender{}
		service := NewRegistration(storage, &MockPropertyStore{}, mail, domain.AuthDB)

		result := service.Save(validRequest(), nil)

		require.Equal(t, OutcomeSuccess, result.Outcome)
		require.NotNil(t, created, "CreateUser should be called")
		assert.True(t, created.Enabled)
		assert.Empty(t, created.ActivationCode)
		assert.Equal(t, domain.UserId(42), result.User.Id)
		assert.Empty(t, result.ActivationStatus)
		assert.Empty(t, mail.Sent, "no activation email without email activation")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PassHash), []byte("tiger")))
	})

	t.Run("email activation creates pending account", func(t *testing.T) {
		var created *domain.User
		storage := &MockUserStorage{
			CreateUserFunc: func(user domain.User) (domain.UserId, error) {
				created = &user
				return 42, nil
			},
		}
		mail := &MockMailSender{}
		props := boolProps(map[string]bool{PropEmailActivation: true})
		service := NewRegistration(storage, props, mail, domain.AuthDB)

		result := service.Save(validRequest(), nil)

		require.Equal(t, OutcomeSuccess, result.Outcome)
		require.NotNil(t, created)
		assert.False(t, created.Enabled)
		assert.NotEmpty(t, created.ActivationCode)
		assert.Equal(t, ActivationPending, result.ActivationStatus)
		require.Len(t, mail.Sent, 1, "exactly one activation email")
		assert.Equal(t, created.ActivationCode, mail.Sent[0].ActivationCode)
		assert.Equal(t, created.Username, mail.Sent[0].Username)
	})

	t.Run("activation email failure does not fail the signup", func(t *testing.T) {
		mail := &MockMailSender{
			SendActivationEmailFunc: func(user domain.User) error { return errors.New("smtp down") },
		}
		props := boolProps(map[string]bool{PropEmailActivation: true})
		service := NewRegistration(&MockUserStorage{}, props, mail, domain.AuthDB)

		result := service.Save(validRequest(), nil)

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.Equal(t, ActivationPending, result.ActivationStatus)
	})

	t.Run("disabled registration performs no writes", func(t *testing.T) {
		createCalled := false
		storage := &MockUserStorage{
			CountUsersFunc: func() (int, error) { return 1, nil },
			CreateUserFunc: func(user domain.User) (domain.UserId, error) {
				createCalled = true
				return 1, nil
			},
		}
		props := boolProps(map[string]bool{PropRegistrationEnabled: false})
		service := NewRegistration(storage, props, &MockMailSender{}, domain.AuthDB)

		result := service.Save(validRequest(), nil)

		assert.Equal(t, OutcomeDisabled, result.Outcome)
		assert.False(t, createCalled)
	})

	t.Run("validation errors block persistence", func(t *testing.T) {
		createCalled := false
		storage := &MockUserStorage{
			CreateUserFunc: func(user domain.User) (domain.UserId, error) {
				createCalled = true
				return 1, nil
			},
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)
		req := validRequest()
		req.PasswordConfirm = "other"

		result := service.Save(req, nil)

		assert.Equal(t, OutcomeInput, result.Outcome)
		assert.Equal(t, []string{ErrMismatchedPasswords}, result.Errors)
		assert.False(t, createCalled)
	})

	t.Run("persistence failure downgrades to retryable error", func(t *testing.T) {
		storage := &MockUserStorage{
			CreateUserFunc: func(user domain.User) (domain.UserId, error) {
				return -1, errors.New("mock insert error")
			},
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		result := service.Save(validRequest(), nil)

		assert.Equal(t, OutcomeInput, result.Outcome)
		assert.Equal(t, []string{ErrGenericCheckLogs}, result.Errors)
	})

	t.Run("openid url is normalized before storage", func(t *testing.T) {
		var created *domain.User
		storage := &MockUserStorage{
			CreateUserFunc: func(user domain.User) (domain.UserId, error) {
				created = &user
				return 1, nil
			},
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDBOpenID)
		req := validRequest()
		req.OpenIDURL = "https://id.example.com/scott/"

		result := service.Save(req, nil)

		require.Equal(t, OutcomeSuccess, result.Outcome)
		require.NotNil(t, created)
		assert.Equal(t, domain.NewOpenIDURL("https://id.example.com/scott"), created.OpenIDURL)
	})
}

func TestActivate(t *testing.T) {
	t.Run("missing code", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		result := service.Activate("")

		assert.Equal(t, ActivationError, result.Status)
		assert.Equal(t, []string{ErrMissingActivationCode}, result.Errors)
	})

	t.Run("invalid code", func(t *testing.T) {
		service := NewRegistration(&MockUserStorage{}, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		result := service.Activate("nope")

		assert.Equal(t, ActivationError, result.Status)
		assert.Equal(t, []string{ErrInvalidActivationCode}, result.Errors)
	})

	t.Run("valid code enables account and clears code", func(t *testing.T) {
		var updated *domain.User
		storage := &MockUserStorage{
			UserByActivationCodeFunc: func(code string) (domain.User, error) {
				return domain.User{Id: 7, Username: "scott", Enabled: false, ActivationCode: code}, nil
			},
			UpdateUserFunc: func(user domain.User) error {
				updated = &user
				return nil
			},
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		result := service.Activate("code-1")

		assert.Equal(t, ActivationActive, result.Status)
		assert.Empty(t, result.Errors)
		require.NotNil(t, updated)
		assert.True(t, updated.Enabled)
		assert.Empty(t, updated.ActivationCode)
	})

	t.Run("second activation with same code fails cleanly", func(t *testing.T) {
		// Stateful mock: activating consumes the code.
		pending := map[string]domain.User{"code-1": {Id: 7, Enabled: false, ActivationCode: "code-1"}}
		storage := &MockUserStorage{
			UserByActivationCodeFunc: func(code string) (domain.User, error) {
				if user, ok := pending[code]; ok {
					return user, nil
				}
				return domain.User{}, errNotFound
			},
			UpdateUserFunc: func(user domain.User) error {
				if user.ActivationCode == "" {
					delete(pending, "code-1")
				}
				return nil
			},
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		first := service.Activate("code-1")
		second := service.Activate("code-1")

		assert.Equal(t, ActivationActive, first.Status)
		assert.Equal(t, ActivationError, second.Status)
		assert.Equal(t, []string{ErrInvalidActivationCode}, second.Errors)
	})

	t.Run("persistence failure surfaces as error status", func(t *testing.T) {
		storage := &MockUserStorage{
			UserByActivationCodeFunc: func(code string) (domain.User, error) {
				return domain.User{Id: 7, ActivationCode: code}, nil
			},
			UpdateUserFunc: func(user domain.User) error { return errors.New("mock update error") },
		}
		service := NewRegistration(storage, &MockPropertyStore{}, &MockMailSender{}, domain.AuthDB)

		result := service.Activate("code-1")

		assert.Equal(t, ActivationError, result.Status)
		assert.Equal(t, []string{"mock update error"}, result.Errors)
	})
}

func TestMatchesCharset(t *testing.T) {
	tests := []struct {
		s    string
		spec string
		want bool
	}{
		{"scott", DefaultAllowedChars, true},
		{"Scott123", DefaultAllowedChars, true},
		{"", DefaultAllowedChars, true},
		{"scott tiger", DefaultAllowedChars, false},
		{"scott.tiger", DefaultAllowedChars, false},
		{"støtte", DefaultAllowedChars, false},
		{"a_b", "a-z_", true},
		{"abc", "abc", true},
		{"abd", "abc", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesCharset(tt.s, tt.spec), "matchesCharset(%q, %q)", tt.s, tt.spec)
	}
}
