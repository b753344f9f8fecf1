package mediactl

// Action 外部控制面发来的意图
type Action string

const (
	ActionPlay  Action = "play"
	ActionPause Action = "pause"
	ActionStop  Action = "stop"
)

var Actions = []Action{ActionPlay, ActionPause, ActionStop}

// PlaybackState 推送给外部控制面的聚合状态
type PlaybackState string

const (
	StateNone    PlaybackState = "none"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

type Metadata struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	ArtURL string `json:"art_url,omitempty"`
}

// Surface is an OS-level (or remote) media control surface. Handlers may be
// invoked on any goroutine.
type Surface interface {
	SetMetadata(md Metadata) error
	SetActionHandler(action Action, handler func()) error
	SetPlaybackState(state PlaybackState) error
	Close() error
}
