package httpbinding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/yosida95/uritemplate/v3"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// ActionHandler invokes an action with a POST and cancels it with a DELETE
// on the reference the Thing returned.
type ActionHandler struct {
	client   *http.Client
	form     thing.Form
	template *uritemplate.Template
}

// NewActionHandler binds an action handler to form. The href is parsed as
// an RFC 6570 template.
func NewActionHandler(client *http.Client, form thing.Form) (*ActionHandler, error) {
	tmpl, err := uritemplate.New(form.Href)
	if err != nil {
		return nil, fmt.Errorf("parsing href template %q: %w", form.Href, err)
	}
	return &ActionHandler{client: client, form: form, template: tmpl}, nil
}

// Expand fills the href template. Variables without a value expand to "".
func (h *ActionHandler) Expand(uriVariables map[string]string) (string, error) {
	values := uritemplate.Values{}
	for name, v := range uriVariables {
		values.Set(name, uritemplate.String(v))
	}
	return h.template.Expand(values)
}

// InvokeAction POSTs input to the expanded href.
func (h *ActionHandler) InvokeAction(ctx context.Context, input any, uriVariables map[string]string) (binding.Invocation, error) {
	target, err := h.Expand(uriVariables)
	if err != nil {
		return binding.Invocation{}, fmt.Errorf("%w: expanding %q: %w", binding.ErrTransport, h.form.Href, err)
	}

	res, err := do(ctx, h.client, method(h.form.MethodName, http.MethodPost), target, input)
	if err != nil {
		return binding.Invocation{}, err
	}

	var output any
	if v, err := decode(res.body); err == nil {
		output = v
	}
	return binding.Invocation{Output: output, Ref: actionRef(res, output)}, nil
}

// CancelAction DELETEs the pending action resource.
func (h *ActionHandler) CancelAction(ctx context.Context, ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: no action reference", binding.ErrCancelUnsupported)
	}
	_, err := do(ctx, h.client, http.MethodDelete, ref, nil)
	return err
}

// actionRef finds the pending action's URL: the Location header, an "href"
// member of the body, or an "href" inside the body's single member
// ({"fade": {"href": "/actions/fade/1", ...}}). Relative references are
// resolved against the request URL.
func actionRef(res *response, output any) string {
	ref := res.header.Get("Location")
	if ref == "" {
		ref = hrefOf(output)
	}
	if ref == "" {
		if obj, ok := output.(map[string]any); ok && len(obj) == 1 {
			for _, inner := range obj {
				ref = hrefOf(inner)
			}
		}
	}
	if ref == "" {
		return ""
	}

	base, err := url.Parse(res.url)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

func hrefOf(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	href, _ := obj["href"].(string)
	return href
}
