package httpbinding

import (
	"context"
	"net/http"

	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// PropertyHandler reads and writes a property over request/response HTTP.
type PropertyHandler struct {
	client *http.Client
	form   thing.Form
}

// NewPropertyHandler binds a property handler to form.
func NewPropertyHandler(client *http.Client, form thing.Form) *PropertyHandler {
	return &PropertyHandler{client: client, form: form}
}

// ReadProperty GETs the form's href and decodes the body as the value.
func (h *PropertyHandler) ReadProperty(ctx context.Context) (any, error) {
	res, err := do(ctx, h.client, method(h.form.MethodName, http.MethodGet), h.form.Href, nil)
	if err != nil {
		return nil, err
	}
	return decode(res.body)
}

// WriteProperty PUTs value. The acknowledged value is the decoded response
// body; a Thing answering with an empty or non-JSON body acknowledges value
// itself.
func (h *PropertyHandler) WriteProperty(ctx context.Context, value any) (any, error) {
	res, err := do(ctx, h.client, method(h.form.MethodName, http.MethodPut), h.form.Href, value)
	if err != nil {
		return nil, err
	}
	ack, err := decode(res.body)
	if err != nil {
		return value, nil
	}
	return ack, nil
}
