package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/liuscraft/noizee/internal/logging"
)

var (
	ErrEmptySource = errors.New("manifest source is empty")
)

// Clip 清单中的一个音频片段描述，会话内只读
type Clip struct {
	ID          string
	DisplayName string
	IconRef     string
}

// record is the on-disk shape. Older manifests use "screenname".
type record struct {
	Filename    string `json:"filename"`
	ScreenName  string `json:"screenname"`
	DisplayName string `json:"displayName"`
	Icon        string `json:"icon"`
}

// Fetch reads the manifest from a local path or an http(s) URL.
func Fetch(ctx context.Context, source string) ([]Clip, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrEmptySource
	}

	var (
		data []byte
		err  error
	)
	if IsRemote(source) {
		data, err = fetchHTTP(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", source, err)
	}

	return Parse(data)
}

// Load is Fetch without failure: an unavailable manifest yields an empty list.
func Load(ctx context.Context, source string) []Clip {
	clips, err := Fetch(ctx, source)
	if err != nil {
		logging.Warnf("Manifest: unavailable, continuing with no clips: %v", err)
		return []Clip{}
	}
	logging.Infof("Manifest: loaded %d clips from %s", len(clips), source)
	return clips
}

// Parse decodes a JSON array of clip records. Records without a filename are
// skipped and duplicate ids keep their first occurrence.
func Parse(data []byte) ([]Clip, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	clips := make([]Clip, 0, len(records))
	for _, r := range records {
		id := strings.TrimSpace(r.Filename)
		if id == "" {
			continue
		}
		name := r.DisplayName
		if name == "" {
			name = r.ScreenName
		}
		if name == "" {
			name = id
		}
		clips = append(clips, Clip{ID: id, DisplayName: name, IconRef: r.Icon})
	}

	return lo.UniqBy(clips, func(c Clip) string { return c.ID }), nil
}

// SoundPath is where the clip's audio lives under the assets directory.
func SoundPath(assetsDir string, clip Clip) string {
	return filepath.Join(assetsDir, "sounds", clip.ID+".mp3")
}

func IconPath(assetsDir string, clip Clip) string {
	if clip.IconRef == "" {
		return ""
	}
	return filepath.Join(assetsDir, "icons", clip.IconRef)
}

// IsRemote reports whether source is an http(s) URL rather than a path.
func IsRemote(source string) bool {
	lower := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
