// Package shellapi holds the fixed catalogs of MongoDB shell API signatures
// used by completion: database, collection and cursor methods, stream
// processing methods, aggregation stages, system variables, BSON
// constructors and top-level globals.
package shellapi

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed signatures.yaml
var signaturesYAML []byte

// ErrInvalidCatalog is returned when a signature catalog fails validation.
var ErrInvalidCatalog = errors.New("shellapi: invalid catalog")

// Entry is one completion candidate of a catalog.
type Entry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Example     string `yaml:"example,omitempty"`
	Link        string `yaml:"link,omitempty"`
}

// Documentation renders the entry as Markdown: the description followed by
// a "Read More" link when one exists.
func (e Entry) Documentation() string {
	if e.Link == "" {
		return e.Description
	}

	return e.Description + "\n\n[Read More](" + e.Link + ")"
}

// Signatures is the full set of catalogs.
type Signatures struct {
	Database          []Entry `yaml:"database"`
	Collection        []Entry `yaml:"collection"`
	Cursor            []Entry `yaml:"cursor"`
	AggregationCursor []Entry `yaml:"aggregationCursor"`
	Streams           []Entry `yaml:"streams"`
	StreamProcessor   []Entry `yaml:"streamProcessor"`
	Stages            []Entry `yaml:"stages"`
	SystemVariables   []Entry `yaml:"systemVariables"`
	BSON              []Entry `yaml:"bson"`
	Globals           []Entry `yaml:"globals"`
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Signatures, error) {
	var s Signatures
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("shellapi: parsing catalog: %w", err)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

var loadDefault = sync.OnceValues(func() (*Signatures, error) {
	return Parse(signaturesYAML)
})

// Default returns the embedded catalogs. The result is shared and must not
// be modified.
func Default() *Signatures {
	s, err := loadDefault()
	if err != nil {
		panic(err)
	}

	return s
}

// catalogs lists every catalog with its YAML key, in document order.
func (s *Signatures) catalogs() []struct {
	key     string
	entries []Entry
} {
	return []struct {
		key     string
		entries []Entry
	}{
		{"database", s.Database},
		{"collection", s.Collection},
		{"cursor", s.Cursor},
		{"aggregationCursor", s.AggregationCursor},
		{"streams", s.Streams},
		{"streamProcessor", s.StreamProcessor},
		{"stages", s.Stages},
		{"systemVariables", s.SystemVariables},
		{"bson", s.BSON},
		{"globals", s.Globals},
	}
}

func (s *Signatures) validate() error {
	var errs []error

	for _, c := range s.catalogs() {
		seen := make(map[string]bool, len(c.entries))

		for i, e := range c.entries {
			switch {
			case e.Name == "":
				errs = append(errs, fmt.Errorf("%w: %s[%d] has no name", ErrInvalidCatalog, c.key, i))
			case seen[e.Name]:
				errs = append(errs, fmt.Errorf("%w: %s has duplicate entry %q", ErrInvalidCatalog, c.key, e.Name))
			}

			seen[e.Name] = true
		}
	}

	return errors.Join(errs...)
}
