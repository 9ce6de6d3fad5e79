package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	artifactPrefix     = "TK_"
	artifactSuffix     = "_flv.mp4"
	artifactTimeFormat = "2006.01.02_15-04-05"
)

// OutputPath returns the path of a new artifact:
//
//	<outputDir>/<user>/TK_<user>_<YYYY.MM.DD_HH-MM-SS>[_Stream-<index>]_flv.mp4
//
// The stream suffix is added only if index is positive.
func OutputPath(
	outputDir string,
	user string,
	startedAt time.Time,
	index int,
) string {
	var name strings.Builder
	name.WriteString(artifactPrefix)
	name.WriteString(user)
	name.WriteString("_")
	name.WriteString(startedAt.Format(artifactTimeFormat))
	if index > 0 {
		fmt.Fprintf(&name, "_Stream-%d", index)
	}
	name.WriteString(artifactSuffix)
	return filepath.Join(outputDir, user, name.String())
}

// createArtifact creates the file at path, or (if it exists) at the first
// free path with a "_<k>" counter, and never truncates an existing file.
func createArtifact(path string) (*os.File, string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, "", fmt.Errorf("unable to create directory '%s': %w", filepath.Dir(path), err)
	}

	base := strings.TrimSuffix(path, artifactSuffix)
	candidate := path
	for k := 2; ; k++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		switch {
		case err == nil:
			return f, candidate, nil
		case os.IsExist(err):
			candidate = fmt.Sprintf("%s_%d%s", base, k, artifactSuffix)
		default:
			return nil, "", fmt.Errorf("unable to create file '%s': %w", candidate, err)
		}
	}
}
