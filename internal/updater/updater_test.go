package updater

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// --- isNewer ---

func TestIsNewer(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{"newer patch", "0.2.0", "0.2.1", true},
		{"newer minor", "0.2.0", "0.3.0", true},
		{"newer major", "0.2.0", "1.0.0", true},
		{"same version", "0.2.0", "0.2.0", false},
		{"older version", "0.3.0", "0.2.0", false},
		{"empty current", "", "0.2.0", false},
		{"empty latest", "0.2.0", "", false},
		{"dev current", "dev", "0.2.0", false},
		{"two part version", "0.2", "0.3.0", true},
		{"minor jump", "0.9.0", "0.10.0", true},
		{"prerelease to release", "1.0.0-rc.1", "1.0.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isNewer(tt.current, tt.latest)
			if got != tt.want {
				t.Errorf("isNewer(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

// --- Check ---

func withServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	oldEndpoint, oldClient := releaseEndpoint, httpClient
	releaseEndpoint = srv.URL
	httpClient = srv.Client()
	t.Cleanup(func() {
		releaseEndpoint, httpClient = oldEndpoint, oldClient
	})
}

func TestCheck_UpdateAvailable(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "dotbot/v0.1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		_ = json.NewEncoder(w).Encode(release{TagName: "v0.2.0", HTMLURL: "https://example.test/r/v0.2.0"})
	})

	res, err := Check(context.Background(), "v0.1.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.UpdateAvailable {
		t.Error("expected update available")
	}
	if res.CurrentVersion != "0.1.0" || res.LatestVersion != "0.2.0" {
		t.Errorf("versions = %s -> %s", res.CurrentVersion, res.LatestVersion)
	}
	if res.ReleaseURL == "" {
		t.Error("release URL should be set")
	}
}

func TestCheck_UpToDate(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(release{TagName: "v0.2.0"})
	})

	res, err := Check(context.Background(), "0.2.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.UpdateAvailable {
		t.Error("expected no update")
	}
}

func TestCheck_HTTPError(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	if _, err := Check(context.Background(), "0.1.0"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestCheck_BadJSON(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	if _, err := Check(context.Background(), "0.1.0"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
