package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

// TargetFlags are the identities given on the command line.
type TargetFlags struct {
	URL       string
	User      string
	RoomID    string
	URLs      []string
	Users     []string
	UsersFile string
	RoomIDs   []string
}

func (f TargetFlags) values() map[types.TargetKind][]string {
	result := map[types.TargetKind][]string{}
	add := func(kind types.TargetKind, values ...string) {
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			result[kind] = append(result[kind], v)
		}
	}
	add(types.TargetKindURL, f.URL)
	add(types.TargetKindURL, f.URLs...)
	add(types.TargetKindHandle, f.User)
	add(types.TargetKindHandle, f.Users...)
	add(types.TargetKindRoomID, f.RoomID)
	add(types.TargetKindRoomID, f.RoomIDs...)
	return result
}

// Targets builds the targets. Exactly one identity kind may be used.
func (f TargetFlags) Targets() ([]*types.Target, error) {
	if f.UsersFile != "" {
		users, err := ReadUsersFile(f.UsersFile)
		if err != nil {
			return nil, err
		}
		f.Users = append(f.Users, users...)
	}

	values := f.values()
	if len(values) > 1 {
		return nil, types.ErrMixedTargetKinds
	}

	var result []*types.Target
	seen := map[string]struct{}{}
	for kind, list := range values {
		for _, v := range list {
			target, err := types.NewTarget(kind, v)
			if err != nil {
				return nil, err
			}
			key := target.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, target)
		}
	}
	if len(result) == 0 {
		return nil, types.ErrNoTargets
	}
	return result, nil
}

func ReadUsersFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open the users file '%s': %w", path, err)
	}
	defer f.Close()
	users, err := ParseUsers(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read the users file '%s': %w", path, err)
	}
	return users, nil
}

// ParseUsers reads a user name per line, skipping empty lines and the
// lines starting with '#'.
func ParseUsers(r io.Reader) ([]string, error) {
	var result []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		result = append(result, types.NormalizeHandle(line))
	}
	return result, scanner.Err()
}
