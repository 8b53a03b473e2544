package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
)

func TestRespond(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode webhook message: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req := &Request{Interaction: &slack.InteractionCallback{ResponseURL: ts.URL}}
	if err := Respond(t.Context(), req, "hello", true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if got["text"] != "hello" {
		t.Errorf("Respond() text = %v, want %q", got["text"], "hello")
	}
	if got["replace_original"] != true {
		t.Errorf("Respond() replace_original = %v, want true", got["replace_original"])
	}
}

func TestRespondWithoutURL(t *testing.T) {
	for _, req := range []*Request{{}, {Interaction: &slack.InteractionCallback{}}} {
		if err := Respond(t.Context(), req, "hello", false); err == nil {
			t.Error("Respond() error = nil, want missing response URL")
		}
	}
}
