package ffprobe

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-version"
	"github.com/xaionaro-go/liverecorder/pkg/subprocess"
)

// MinimalVersion is the oldest ffprobe known to support "json=compact=1".
const MinimalVersion = "4.0"

var versionRegexp = regexp.MustCompile(`version\s+n?(\d+(?:\.\d+)*)`)

// ParseVersion extracts the version from the first line of "-version".
// Development builds ("N-12345-g...") have no parsable version, in which
// case (nil, nil) is returned.
func ParseVersion(output []byte) (*version.Version, error) {
	m := versionRegexp.FindSubmatch(output)
	if m == nil {
		return nil, nil
	}
	v, err := version.NewVersion(string(m[1]))
	if err != nil {
		return nil, fmt.Errorf("unable to parse version '%s': %w", m[1], err)
	}
	return v, nil
}

// CheckAvailable makes sure the binary can be executed and is not too old.
// It works for both ffprobe and ffmpeg.
func CheckAvailable(ctx context.Context, binary string) (*version.Version, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	out, err := subprocess.Run(ctx, binary, "-version")
	if err != nil {
		return nil, fmt.Errorf("'%s' is not available: %w", binary, err)
	}
	v, err := ParseVersion(out)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if v.LessThan(version.Must(version.NewVersion(MinimalVersion))) {
		return v, fmt.Errorf("'%s' version %s is too old, need at least %s", binary, v, MinimalVersion)
	}
	return v, nil
}
