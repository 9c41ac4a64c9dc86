package protocols

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

func TestDefault_Selection(t *testing.T) {
	reg := Default()

	tests := []struct {
		name string
		op   thing.Op
		form thing.Form
		want string
		ok   bool
	}{
		{"http read", thing.OpReadProperty, thing.Form{Href: "http://lamp/properties/level"}, "http", true},
		{"long-poll form is not read generically", thing.OpReadProperty, thing.Form{Href: "http://lamp/p", Subprotocol: "longpoll"}, "", false},
		{"mqtt read unsupported", thing.OpReadProperty, thing.Form{Href: "mqtt://broker/lamp/level"}, "", false},
		{"http write", thing.OpWriteProperty, thing.Form{Href: "https://lamp/properties/level"}, "http", true},
		{"mqtt write", thing.OpWriteProperty, thing.Form{Href: "mqtt://broker/lamp/level"}, "mqtt", true},
		{"long-poll observe", thing.OpObserveProperty, thing.Form{Href: "http://lamp/p", Subprotocol: "longpoll"}, "http-longpoll", true},
		{"plain http observe unsupported", thing.OpObserveProperty, thing.Form{Href: "http://lamp/p"}, "", false},
		{"mqtt observe", thing.OpObserveProperty, thing.Form{Href: "mqtt://broker/lamp/level"}, "mqtt", true},
		{"http invoke", thing.OpInvokeAction, thing.Form{Href: "http://lamp/actions/fade"}, "http", true},
		{"mqtt invoke", thing.OpInvokeAction, thing.Form{Href: "mqtt://broker/lamp/fade"}, "mqtt", true},
		{"long-poll event", thing.OpSubscribeEvent, thing.Form{Href: "http://lamp/e", Subprotocol: "longpoll"}, "http-longpoll", true},
		{"mqtt event", thing.OpSubscribeEvent, thing.Form{Href: "mqtt://broker/lamp/overheated"}, "mqtt", true},
		{"coap write unsupported", thing.OpWriteProperty, thing.Form{Href: "coap://lamp/level"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.Resolve(tt.op, tt.form)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Resolve(%s) = %q, %v; want %q, %v", tt.op, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDefault_Unbindable(t *testing.T) {
	reg := Default()
	forms := []thing.Form{{Href: "coap://lamp/level"}, {Href: "mqtt://broker/lamp/level"}}

	_, _, err := binding.Bind(reg.Readers, binding.Env{}, forms)
	if !errors.Is(err, binding.ErrNoApplicableHandler) {
		t.Errorf("Bind(readers) error = %v, want ErrNoApplicableHandler", err)
	}

	_, form, err := binding.Bind(reg.Writers, binding.Env{}, forms)
	if err != nil {
		t.Fatalf("Bind(writers) error = %v", err)
	}
	if form.Href != "mqtt://broker/lamp/level" {
		t.Errorf("bound form = %q", form.Href)
	}
}

func TestDefault_LoadUnsupportedScheme(t *testing.T) {
	_, err := Default().Load(context.Background(), binding.Env{}, "coap://lamp/td")
	if !errors.Is(err, binding.ErrUnsupportedScheme) {
		t.Errorf("Load() error = %v, want ErrUnsupportedScheme", err)
	}
}
