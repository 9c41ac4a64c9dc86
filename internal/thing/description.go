package thing

import (
	"bytes"
	"crypto/md5" // #nosec G501 -- change detection only, not security
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Description is one Thing's interaction model.
type Description struct {
	Context     any    `json:"@context,omitempty"`
	Type        any    `json:"@type,omitempty"`
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Href is the URL the Thing reports for itself. When set it replaces the
	// load URL for identity.
	Href string `json:"href,omitempty"`

	// Base resolves relative form hrefs.
	Base string `json:"base,omitempty"`

	Properties map[string]*Property `json:"properties,omitempty"`
	Actions    map[string]*Action   `json:"actions,omitempty"`
	Events     map[string]*Event    `json:"events,omitempty"`

	// Raw is this Thing's own JSON text.
	Raw []byte `json:"-"`

	// URL is where the description was loaded from, without trailing slash.
	URL string `json:"-"`
}

// Property is a readable, writable or observable value.
type Property struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	ReadOnly    bool     `json:"readOnly,omitempty"`
	WriteOnly   bool     `json:"writeOnly,omitempty"`
	Observable  bool     `json:"observable,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Enum        []any    `json:"enum,omitempty"`

	// Value is the initial value advertised by the description.
	Value any    `json:"value,omitempty"`
	Forms []Form `json:"forms"`
}

// Action is an invokable operation.
type Action struct {
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	UriVariables map[string]any `json:"uriVariables,omitempty"` //nolint:revive // JSON field name
	Forms        []Form         `json:"forms"`
}

// Event is a notification source.
type Event struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Forms       []Form         `json:"forms"`
}

// Document is a fetched description document.
type Document struct {
	// Raw is the document exactly as fetched.
	Raw []byte
	// Digest is the hex MD5 of Raw.
	Digest string
	// Things holds one entry for an object document, or one per element of
	// an array document.
	Things []*Description
}

// Digest returns the hex MD5 of raw.
func Digest(raw []byte) string {
	sum := md5.Sum(raw) // #nosec G401 -- change detection only
	return hex.EncodeToString(sum[:])
}

// Parse decodes a description document loaded from loadURL.
//
// Every Thing is normalised (see Normalize) and its relative form hrefs are
// resolved against its base, or loadURL when it has none.
//
// Parameters:
//   - raw: The fetched bytes
//   - loadURL: Where the document came from; may be empty
//
// Returns:
//   - *Document: Parsed document with at least one Thing
//   - error: ErrInvalidDescription
func Parse(raw []byte, loadURL string) (*Document, error) {
	loadURL = strings.TrimSuffix(loadURL, "/")
	doc := &Document{Raw: raw, Digest: Digest(raw)}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDescription)
	}

	var elements []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
		}
		if len(elements) == 0 {
			return nil, fmt.Errorf("%w: empty array", ErrInvalidDescription)
		}
	case '{':
		elements = []json.RawMessage{json.RawMessage(trimmed)}
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrInvalidDescription)
	}

	for i, element := range elements {
		d := &Description{}
		if err := json.Unmarshal(element, d); err != nil {
			return nil, fmt.Errorf("%w: thing %d: %w", ErrInvalidDescription, i, err)
		}
		d.Raw = element
		d.URL = loadURL
		if err := d.resolveForms(); err != nil {
			return nil, fmt.Errorf("%w: thing %d: %w", ErrInvalidDescription, i, err)
		}
		Normalize(d)
		doc.Things = append(doc.Things, d)
	}
	return doc, nil
}

// Normalize rewrites actions that declare uriVariables so that their input
// schema is an object whose properties are those variables.
func Normalize(d *Description) {
	for _, a := range d.Actions {
		if a == nil || len(a.UriVariables) == 0 {
			continue
		}
		props := make(map[string]any, len(a.UriVariables))
		for name, schema := range a.UriVariables {
			props[name] = schema
		}
		a.Input = map[string]any{"type": "object", "properties": props}
	}
}

func (d *Description) resolveForms() error {
	base, err := d.baseURL()
	if err != nil {
		return err
	}
	resolveAll := func(forms []Form) error {
		for i := range forms {
			f, err := forms[i].resolve(base)
			if err != nil {
				return err
			}
			forms[i] = f
		}
		return nil
	}
	for _, p := range d.Properties {
		if p != nil {
			if err := resolveAll(p.Forms); err != nil {
				return err
			}
		}
	}
	for _, a := range d.Actions {
		if a != nil {
			if err := resolveAll(a.Forms); err != nil {
				return err
			}
		}
	}
	for _, e := range d.Events {
		if e != nil {
			if err := resolveAll(e.Forms); err != nil {
				return err
			}
		}
	}
	return nil
}

// baseURL returns the URL relative hrefs resolve against, or nil.
func (d *Description) baseURL() (*url.URL, error) {
	raw := d.Base
	if raw == "" {
		raw = d.URL
	}
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: base %q: %w", ErrInvalidForm, raw, err)
	}
	if !u.IsAbs() {
		return nil, nil
	}
	return u, nil
}

// ThingURL is the URL identifying the Thing: its self-reported href when
// present, otherwise the URL it was loaded from.
func (d *Description) ThingURL() string {
	if d.Href != "" {
		return strings.TrimSuffix(d.Href, "/")
	}
	return d.URL
}

// DeviceID derives the device identity from ThingURL.
func (d *Description) DeviceID() string {
	return DeviceID(d.ThingURL())
}

var idReplacer = strings.NewReplacer(":", "-", "/", "-")

// DeviceID replaces ':' and '/' in a Thing URL with '-'.
//
// Example: "http://lamp.local/things/lamp" -> "http---lamp.local-things-lamp"
func DeviceID(thingURL string) string {
	return idReplacer.Replace(thingURL)
}

// PropertyNames returns property names in sorted order.
func (d *Description) PropertyNames() []string {
	return sortedKeys(d.Properties)
}

// ActionNames returns action names in sorted order.
func (d *Description) ActionNames() []string {
	return sortedKeys(d.Actions)
}

// EventNames returns event names in sorted order.
func (d *Description) EventNames() []string {
	return sortedKeys(d.Events)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
