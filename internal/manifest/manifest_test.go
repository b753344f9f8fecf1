package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `[
	{"filename": "rain", "screenname": "Rain", "icon": "rain.svg"},
	{"filename": "fire", "displayName": "Campfire", "icon": "fire.svg"},
	{"filename": "", "screenname": "Broken"},
	{"filename": "rain", "screenname": "Rain again"},
	{"filename": "wind"}
]`

func TestParse(t *testing.T) {
	clips, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Clip{
		{ID: "rain", DisplayName: "Rain", IconRef: "rain.svg"},
		{ID: "fire", DisplayName: "Campfire", IconRef: "fire.svg"},
		{ID: "wind", DisplayName: "wind"},
	}
	if len(clips) != len(want) {
		t.Fatalf("expected %d clips, got %d: %+v", len(want), len(clips), clips)
	}
	for i := range want {
		if clips[i] != want[i] {
			t.Fatalf("clip %d = %+v, want %+v", i, clips[i], want[i])
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte(`{"not": "a list"}`)); err == nil {
		t.Fatalf("expected error for non-array manifest")
	}
}

func TestFetchFileAndHTTP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundlist.json")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	clips, err := Fetch(context.Background(), path)
	if err != nil || len(clips) != 3 {
		t.Fatalf("Fetch(file) = %d clips, err %v", len(clips), err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/soundlist.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	clips, err = Fetch(context.Background(), srv.URL+"/assets/soundlist.json")
	if err != nil || len(clips) != 3 {
		t.Fatalf("Fetch(http) = %d clips, err %v", len(clips), err)
	}

	if _, err := Fetch(context.Background(), srv.URL+"/missing.json"); err == nil {
		t.Fatalf("expected error on 404")
	}
}

func TestLoadDegradesToEmpty(t *testing.T) {
	clips := Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	if clips == nil || len(clips) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", clips)
	}
	if clips := Load(context.Background(), ""); len(clips) != 0 {
		t.Fatalf("expected empty list for empty source")
	}
}

func TestPaths(t *testing.T) {
	c := Clip{ID: "rain", IconRef: "rain.svg"}
	if got := SoundPath("assets", c); got != filepath.Join("assets", "sounds", "rain.mp3") {
		t.Fatalf("SoundPath = %q", got)
	}
	if got := IconPath("assets", c); got != filepath.Join("assets", "icons", "rain.svg") {
		t.Fatalf("IconPath = %q", got)
	}
	if got := IconPath("assets", Clip{ID: "x"}); got != "" {
		t.Fatalf("IconPath without icon = %q", got)
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundlist.json")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(`[]`), 0o600); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	select {
	case <-w.Events:
	case <-time.After(5 * time.Second):
		t.Fatalf("no change event for manifest rewrite")
	}
}
