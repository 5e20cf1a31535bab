package autocomplete

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
)

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "normal", body: `["lofi",["lofi hip hop","lofi girl",""]]`, want: []string{"lofi hip hop", "lofi girl"}},
		{name: "no list", body: `["lofi"]`, want: nil},
		{name: "wrong shape", body: `["lofi",{"a":1}]`, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestions(json.NewDecoder(strings.NewReader(tt.body)))
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYouTubeSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "cats" || r.URL.Query().Get("ds") != "yt" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "no agent", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`["cats",["cats song","cats musical","cats compilation"]]`))
	}))
	defer srv.Close()

	old := suggestEndpoint
	suggestEndpoint = srv.URL
	defer func() { suggestEndpoint = old }()

	choices, err := GetYouTubeAndSpotifySuggestions(context.Background(), "cats", nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(choices) != 2 {
		t.Fatalf("got %d choices", len(choices))
	}
	if choices[0].Name != "YouTube: cats song" || choices[0].Value != "cats song" {
		t.Fatalf("first choice = %q / %v", choices[0].Name, choices[0].Value)
	}

	suggestEndpoint = srv.URL + "/?fail"
	if _, err := GetYouTubeSuggestions(context.Background(), "dogs"); err == nil {
		t.Fatal("expected error for rejected query")
	}
}
