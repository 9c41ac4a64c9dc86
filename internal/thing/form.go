package thing

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Op is an operation name a form declares it supports.
type Op string

// Operation names used by the bindings.
const (
	OpReadProperty      Op = "readproperty"
	OpWriteProperty     Op = "writeproperty"
	OpObserveProperty   Op = "observeproperty"
	OpUnobserveProperty Op = "unobserveproperty"
	OpInvokeAction      Op = "invokeaction"
	OpSubscribeEvent    Op = "subscribeevent"
	OpUnsubscribeEvent  Op = "unsubscribeevent"
)

// Sub-protocols with dedicated handlers.
const (
	SubprotocolLongPoll = "longpoll"
)

// Ops is a form's operation list. In JSON it may be a single string or an array.
type Ops []Op

// UnmarshalJSON accepts "readproperty" as well as ["readproperty", ...].
func (o *Ops) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*o = Ops{Op(single)}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("op must be a string or an array of strings: %w", err)
	}
	ops := make(Ops, len(list))
	for i, s := range list {
		ops[i] = Op(s)
	}
	*o = ops
	return nil
}

// Form is one endpoint of an interaction.
type Form struct {
	Href        string `json:"href"`
	Subprotocol string `json:"subprotocol,omitempty"`
	Op          Ops    `json:"op,omitempty"`
	ContentType string `json:"contentType,omitempty"`

	// MethodName overrides the HTTP method chosen by the binding.
	MethodName string `json:"htv:methodName,omitempty"`
}

// Has reports whether the form declares op.
func (f Form) Has(op Op) bool {
	for _, o := range f.Op {
		if o == op {
			return true
		}
	}
	return false
}

// Scheme returns the lowercased URI scheme of Href, or "" when it has none.
func (f Form) Scheme() string {
	i := strings.Index(f.Href, ":")
	if i <= 0 {
		return ""
	}
	scheme := strings.ToLower(f.Href[:i])
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return ""
		}
	}
	return scheme
}

// HasScheme reports whether the form's scheme is one of schemes.
func (f Form) HasScheme(schemes ...string) bool {
	s := f.Scheme()
	for _, want := range schemes {
		if s == want {
			return true
		}
	}
	return false
}

// resolve makes Href absolute against base. URI template braces are kept
// verbatim so templated hrefs survive resolution.
func (f Form) resolve(base *url.URL) (Form, error) {
	if base == nil || f.Scheme() != "" {
		return f, nil
	}
	if f.Href == "" {
		return f, fmt.Errorf("%w: empty href", ErrInvalidForm)
	}

	// Split off any template expression so url.Parse does not escape it.
	head, tail := f.Href, ""
	if i := strings.IndexByte(f.Href, '{'); i >= 0 {
		head, tail = f.Href[:i], f.Href[i:]
	}
	ref, err := url.Parse(head)
	if err != nil {
		return f, fmt.Errorf("%w: %q: %w", ErrInvalidForm, f.Href, err)
	}
	f.Href = base.ResolveReference(ref).String() + tail
	return f, nil
}
