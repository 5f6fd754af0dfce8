package pg

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/weblogd/weblogd/internal/logger"
)

// Runtime properties are admin-tunable settings stored in the database so
// they can change while the server runs (registration toggles and the
// like). Readers hit the database every time; the save path relies on this
// to re-check the registration toggle right before committing.

// BoolProperty returns the boolean property with the given name, or def if
// the property is not set. A malformed stored value counts as unset.
func (s *Storage) BoolProperty(name string, def bool) (bool, error) {
	raw, found, err := s.property(s.db, name)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Log.Warn("malformed boolean runtime property", "name", name, "value", raw)
		return def, nil
	}
	return val, nil
}

// StringProperty returns the property with the given name, or def if unset
// or blank.
func (s *Storage) StringProperty(name string, def string) (string, error) {
	raw, found, err := s.property(s.db, name)
	if err != nil {
		return def, err
	}
	if !found || raw == "" {
		return def, nil
	}
	return raw, nil
}

// SetProperty upserts a runtime property. Used by admin tooling and tests.
func (s *Storage) SetProperty(name, value string) error {
	_, err := s.db.Exec(`
        INSERT INTO runtime_properties(name, value) VALUES($1, $2)
        ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to set runtime property %q: %w", name, err)
	}
	return nil
}

func (s *Storage) property(q Querier, name string) (string, bool, error) {
	var value string
	err := q.QueryRow("SELECT value FROM runtime_properties WHERE name = $1", name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query runtime property %q: %w", name, err)
	}
	return value, true, nil
}
