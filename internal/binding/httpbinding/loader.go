package httpbinding

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
)

// Load fetches a description document over HTTP. Deadlines come from ctx.
func Load(ctx context.Context, env binding.Env, u *url.URL) (*binding.Fetched, error) {
	res, err := do(ctx, env.HTTPClient(), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &binding.Fetched{Raw: res.body}, nil
}

func isHTTPURL(u *url.URL) bool {
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}
