package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

func TestParseUsers(t *testing.T) {
	users, err := ParseUsers(strings.NewReader("alice\n\n# a comment\n  @bob  \n#carol\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestTargetFlags(t *testing.T) {
	usersFile := filepath.Join(t.TempDir(), "users.txt")
	require.NoError(t, os.WriteFile(usersFile, []byte("carol\nalice\n"), 0644))

	for _, tc := range []struct {
		name    string
		flags   TargetFlags
		want    []string
		wantErr error
	}{
		{
			name:  "single_user",
			flags: TargetFlags{User: "@alice"},
			want:  []string{"@alice"},
		},
		{
			name:  "users_and_file_deduplicated",
			flags: TargetFlags{Users: []string{"alice", "bob"}, UsersFile: usersFile},
			want:  []string{"@alice", "@bob", "@carol"},
		},
		{
			name:  "room_ids",
			flags: TargetFlags{RoomIDs: []string{"1", " 2 ", ""}},
			want:  []string{"room 1", "room 2"},
		},
		{
			name:    "mixed",
			flags:   TargetFlags{User: "alice", RoomID: "1"},
			wantErr: types.ErrMixedTargetKinds,
		},
		{
			name:    "nothing",
			flags:   TargetFlags{Users: []string{" "}},
			wantErr: types.ErrNoTargets,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			targets, err := tc.flags.Targets()
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, target := range targets {
				names = append(names, target.String())
			}
			assert.ElementsMatch(t, tc.want, names)
		})
	}
}

func TestTargetFlagsBadURL(t *testing.T) {
	_, err := TargetFlags{URL: "https://example.com/live"}.Targets()
	require.Error(t, err)
	assert.Equal(t, types.ErrorClassFatalProcess, types.Classify(err))
}
