package types

import (
	"context"
	"io"
	"time"
)

// StreamSource is the platform API the recorder consumes.
type StreamSource interface {
	IsLive(ctx context.Context, target *Target) (bool, error)

	// ResolvePlaybackURL returns an empty string if the stream has no
	// playable URL.
	ResolvePlaybackURL(ctx context.Context, target *Target) (string, error)

	ResolveRoomFromHandle(ctx context.Context, handle string) (string, error)

	// FetchChunks opens one connection to the stream. The returned reader
	// yields the raw stream bytes; it ends with io.EOF when the platform
	// closes the connection and with an error on a disconnect.
	FetchChunks(ctx context.Context, url string) (io.ReadCloser, error)
}

// URLResolver is implemented by sources that can turn a stream URL
// into a handle and a room ID.
type URLResolver interface {
	ResolveURL(ctx context.Context, url string) (handle string, roomID string, err error)
}

// UserResolver is implemented by sources that can find the handle
// broadcasting in a room.
type UserResolver interface {
	ResolveUserFromRoom(ctx context.Context, roomID string) (string, error)
}

// CountryChecker is implemented by sources that can detect that the
// platform is not available from the current network location.
type CountryChecker interface {
	IsCountryBlacklisted(ctx context.Context) (bool, error)
}

type ResolutionSettings struct {
	RestartOnResolutionChange bool
	CheckInterval             time.Duration
}

// ResolutionSettingsProvider returns the effective resolution settings for a
// target. It is queried at the start of every session, so the result may
// change between sessions.
type ResolutionSettingsProvider interface {
	ResolutionSettings(ctx context.Context, handle string, roomID string) (ResolutionSettings, error)
}

// PostProcessor receives finalized artifacts. HandleArtifact must not block
// on the processing itself and its failures never affect the recording.
type PostProcessor interface {
	HandleArtifact(ctx context.Context, path string)
}
