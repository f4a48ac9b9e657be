package rules

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Table is the process-wide rule table. It is immutable after Load; picking
// up an edited rules file means calling Load again and swapping the engine.
type Table struct {
	blacklisted map[string]struct{}
	authorized  map[string]struct{}
}

// NewTable builds a table from explicit plate lists. Used directly in tests
// and by Load.
func NewTable(blacklisted, authorized []string) *Table {
	t := &Table{
		blacklisted: make(map[string]struct{}, len(blacklisted)),
		authorized:  make(map[string]struct{}, len(authorized)),
	}
	for _, p := range blacklisted {
		t.blacklisted[p] = struct{}{}
	}
	for _, p := range authorized {
		t.authorized[p] = struct{}{}
	}
	return t
}

// Load reads the rules file (JSON with blacklisted_plates and
// authorized_plates arrays). A missing file is not an error: the service
// degrades to an empty, permissive table.
func Load(path string, log zerolog.Logger) (*Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("rules file not found, using empty rule table")
		return NewTable(nil, nil), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	t := NewTable(
		v.GetStringSlice("blacklisted_plates"),
		v.GetStringSlice("authorized_plates"),
	)
	log.Info().
		Str("path", path).
		Int("blacklisted", len(t.blacklisted)).
		Int("authorized", len(t.authorized)).
		Msg("rule table loaded")
	return t, nil
}

func (t *Table) IsBlacklisted(plate string) bool {
	_, ok := t.blacklisted[plate]
	return ok
}

func (t *Table) IsAuthorized(plate string) bool {
	_, ok := t.authorized[plate]
	return ok
}

// HasAuthorizedList reports whether an authorization list is defined at all.
// The unauthorized_entry rule only fires when one is.
func (t *Table) HasAuthorizedList() bool {
	return len(t.authorized) > 0
}
