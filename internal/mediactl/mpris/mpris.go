// Package mpris exposes the mixer as an MPRIS media player on the D-Bus
// session bus, so desktop media keys and applets can pause and resume it.
package mpris

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/liuscraft/noizee/internal/logging"
	"github.com/liuscraft/noizee/internal/mediactl"
)

const (
	busPrefix   = "org.mpris.MediaPlayer2."
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
)

var ErrNameTaken = errors.New("mpris: bus name already owned")

// Surface MPRIS 媒体控制面
type Surface struct {
	name  string
	conn  *dbus.Conn
	props *prop.Properties

	mu       sync.Mutex
	handlers map[mediactl.Action]func()
	status   string
}

var _ mediactl.Surface = (*Surface)(nil)

// Dial connects to the session bus and claims org.mpris.MediaPlayer2.<name>.
func Dial(name string) (*Surface, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "noizee"
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	s := newSurface(name)
	s.conn = conn
	if err := s.export(); err != nil {
		conn.Close()
		return nil, err
	}

	reply, err := conn.RequestName(busPrefix+name, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, ErrNameTaken
	}
	logging.Infof("MPRIS: exported as %s%s", busPrefix, name)
	return s, nil
}

func newSurface(name string) *Surface {
	return &Surface{
		name:     name,
		handlers: make(map[mediactl.Action]func()),
		status:   "Stopped",
	}
}

func (s *Surface) export() error {
	root := &rootObject{}
	player := &playerObject{s: s}

	if err := s.conn.Export(root, objectPath, rootIface); err != nil {
		return fmt.Errorf("export root: %w", err)
	}
	if err := s.conn.Export(player, objectPath, playerIface); err != nil {
		return fmt.Errorf("export player: %w", err)
	}

	props, err := prop.Export(s.conn, objectPath, prop.Map{
		rootIface: {
			"Identity":            {Value: s.name, Emit: prop.EmitTrue},
			"CanQuit":             {Value: false, Emit: prop.EmitTrue},
			"CanRaise":            {Value: false, Emit: prop.EmitTrue},
			"HasTrackList":        {Value: false, Emit: prop.EmitTrue},
			"SupportedUriSchemes": {Value: []string{}, Emit: prop.EmitTrue},
			"SupportedMimeTypes":  {Value: []string{}, Emit: prop.EmitTrue},
		},
		playerIface: {
			"PlaybackStatus": {Value: s.status, Emit: prop.EmitTrue},
			"Metadata":       {Value: map[string]dbus.Variant{}, Emit: prop.EmitTrue},
			"Rate":           {Value: 1.0, Emit: prop.EmitTrue},
			"MinimumRate":    {Value: 1.0, Emit: prop.EmitTrue},
			"MaximumRate":    {Value: 1.0, Emit: prop.EmitTrue},
			"Volume":         {Value: 1.0, Emit: prop.EmitTrue},
			"Position":       {Value: int64(0), Emit: prop.EmitFalse},
			"CanGoNext":      {Value: false, Emit: prop.EmitTrue},
			"CanGoPrevious":  {Value: false, Emit: prop.EmitTrue},
			"CanPlay":        {Value: true, Emit: prop.EmitTrue},
			"CanPause":       {Value: true, Emit: prop.EmitTrue},
			"CanSeek":        {Value: false, Emit: prop.EmitTrue},
			"CanControl":     {Value: true, Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	s.props = props

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: rootIface, Methods: introspect.Methods(root), Properties: props.Introspection(rootIface)},
			{Name: playerIface, Methods: introspect.Methods(player), Properties: props.Introspection(playerIface)},
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}
	return nil
}

func (s *Surface) SetMetadata(md mediactl.Metadata) error {
	if s.props == nil {
		return nil
	}
	if derr := s.props.Set(playerIface, "Metadata", dbus.MakeVariant(metadataMap(s.name, md))); derr != nil {
		return derr
	}
	return nil
}

func (s *Surface) SetActionHandler(action mediactl.Action, handler func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = handler
	return nil
}

func (s *Surface) SetPlaybackState(state mediactl.PlaybackState) error {
	status := playbackStatus(state)
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	if s.props == nil {
		return nil
	}
	if derr := s.props.Set(playerIface, "PlaybackStatus", dbus.MakeVariant(status)); derr != nil {
		return derr
	}
	return nil
}

func (s *Surface) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.ReleaseName(busPrefix + s.name); err != nil {
		logging.Debugf("MPRIS: release name: %v", err)
	}
	return s.conn.Close()
}

func (s *Surface) dispatch(action mediactl.Action) {
	s.mu.Lock()
	h := s.handlers[action]
	s.mu.Unlock()
	if h != nil {
		h()
	}
}

func (s *Surface) playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == "Playing"
}

func playbackStatus(state mediactl.PlaybackState) string {
	switch state {
	case mediactl.StatePlaying:
		return "Playing"
	case mediactl.StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func metadataMap(name string, md mediactl.Metadata) map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(objectPath + dbus.ObjectPath("/"+name)),
		"xesam:title":   dbus.MakeVariant(md.Title),
	}
	if md.Artist != "" {
		m["xesam:artist"] = dbus.MakeVariant([]string{md.Artist})
	}
	if md.Album != "" {
		m["xesam:album"] = dbus.MakeVariant(md.Album)
	}
	if md.ArtURL != "" {
		m["mpris:artUrl"] = dbus.MakeVariant(md.ArtURL)
	}
	return m
}

// rootObject implements org.mpris.MediaPlayer2.
type rootObject struct{}

func (rootObject) Raise() *dbus.Error { return nil }

func (rootObject) Quit() *dbus.Error { return nil }

// playerObject implements org.mpris.MediaPlayer2.Player.
type playerObject struct {
	s *Surface
}

func (p *playerObject) Play() *dbus.Error {
	p.s.dispatch(mediactl.ActionPlay)
	return nil
}

func (p *playerObject) Pause() *dbus.Error {
	p.s.dispatch(mediactl.ActionPause)
	return nil
}

func (p *playerObject) PlayPause() *dbus.Error {
	if p.s.playing() {
		p.s.dispatch(mediactl.ActionPause)
	} else {
		p.s.dispatch(mediactl.ActionPlay)
	}
	return nil
}

func (p *playerObject) Stop() *dbus.Error {
	p.s.dispatch(mediactl.ActionStop)
	return nil
}

func (p *playerObject) Next() *dbus.Error { return nil }

func (p *playerObject) Previous() *dbus.Error { return nil }

func (p *playerObject) Seek(int64) *dbus.Error { return nil }

func (p *playerObject) SetPosition(dbus.ObjectPath, int64) *dbus.Error { return nil }

func (p *playerObject) OpenUri(string) *dbus.Error { return nil }
