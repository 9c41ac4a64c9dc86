package httpbinding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// Default long-poll retry pacing, used when the Env leaves it unset.
const (
	defaultRetryInitial = 1 * time.Second
	defaultRetryMax     = 30 * time.Second
)

// LongPollHandler observes a property or subscribes to an event by holding
// GET requests open against the form's href.
type LongPollHandler struct {
	client *http.Client
	form   thing.Form
	retry  binding.RetryPolicy
	log    binding.Logger
}

// NewLongPollHandler binds a long-poll handler to form.
func NewLongPollHandler(env binding.Env, form thing.Form) *LongPollHandler {
	retry := env.Retry
	if retry.Initial <= 0 {
		retry.Initial = defaultRetryInitial
	}
	if retry.Max < retry.Initial {
		retry.Max = max(defaultRetryMax, retry.Initial)
	}
	return &LongPollHandler{
		client: env.StreamingClient(),
		form:   form,
		retry:  retry,
		log:    env.Log(),
	}
}

// ObserveProperty starts the long-poll loop for a property.
func (h *LongPollHandler) ObserveProperty(ctx context.Context, deliver binding.DeliverFunc) (*binding.Subscription, error) {
	return h.start(ctx, deliver), nil
}

// SubscribeEvent starts the long-poll loop for an event.
func (h *LongPollHandler) SubscribeEvent(ctx context.Context, deliver binding.DeliverFunc) (*binding.Subscription, error) {
	return h.start(ctx, deliver), nil
}

func (h *LongPollHandler) start(ctx context.Context, deliver binding.DeliverFunc) *binding.Subscription {
	sub := binding.NewSubscription(ctx, deliver)
	go h.loop(sub)
	return sub
}

// loop issues one request at a time until the subscription is canceled.
// A value is delivered before the next request starts. Failures and
// responses without a body both wait out the backoff before re-issuing;
// only a delivered value resets it.
func (h *LongPollHandler) loop(sub *binding.Subscription) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.retry.Initial
	b.MaxInterval = h.retry.Max
	b.MaxElapsedTime = 0
	b.Reset()

	ctx := sub.Context()
	for sub.Active() {
		v, err := h.poll(ctx)
		if err == nil && v != nil {
			b.Reset()
			sub.Deliver(v)
			continue
		}
		if !sub.Active() || errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		wait := b.NextBackOff()
		if err != nil {
			h.log.Debug("long-poll request failed, re-issuing",
				"href", h.form.Href, "retry_in", wait, "error", err)
		} else {
			h.log.Debug("long-poll returned no value, re-issuing",
				"href", h.form.Href, "retry_in", wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// poll performs one long-poll request. It returns nil, nil for an empty body.
func (h *LongPollHandler) poll(ctx context.Context) (any, error) {
	res, err := do(ctx, h.client, method(h.form.MethodName, http.MethodGet), h.form.Href, nil)
	if err != nil {
		return nil, err
	}
	if res.status == http.StatusNoContent || len(res.body) == 0 {
		return nil, nil
	}
	return decode(res.body)
}
