package playground

import (
	"bytes"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.mongodb.org/mongo-driver/bson"
)

// Result languages.
const (
	LanguageJSON      = "json"
	LanguagePlaintext = "plaintext"
)

// Result is the evaluated value of a playground run.
type Result struct {
	// Namespace is reserved and always null.
	Namespace *string `json:"namespace"`

	// Type is the shell's type for the value, or null when unknown.
	Type *string `json:"type"`

	// Content is relaxed Extended JSON when Language is json, otherwise a
	// JSON string holding the printed output.
	Content json.RawMessage `json:"content"`

	Language string `json:"language"`
}

// NewResult types printable output. Documents and arrays that parse as
// Extended JSON become json content; anything else is plaintext.
func NewResult(printable, shellType string) *Result {
	r := &Result{Language: LanguagePlaintext}

	if shellType != "" {
		r.Type = &shellType
	}

	if value, ok := relaxedEJSON(printable); ok {
		r.Content = value
		r.Language = LanguageJSON

		return r
	}

	r.Content, _ = json.Marshal(printable)

	return r
}

// String renders the content for display.
func (r *Result) String() string {
	if r.Language != LanguageJSON {
		var s string
		if err := json.Unmarshal(r.Content, &s); err != nil {
			return string(r.Content)
		}

		return s
	}

	var out bytes.Buffer
	if err := json.Indent(&out, r.Content, "", "  "); err != nil {
		return string(r.Content)
	}

	return out.String()
}

// relaxedEJSON parses s as an Extended JSON document or array and
// re-encodes it in relaxed form.
func relaxedEJSON(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}

	// Top-level arrays are only accepted inside a document.
	var doc bson.Raw
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+s+`}`), false, &doc); err != nil {
		return nil, false
	}

	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, false
	}

	var wrapped struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, false
	}

	return wrapped.V, true
}
