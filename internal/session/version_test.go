package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		banner  string
		want    string
		wantErr bool
	}{
		{"MongoDB shell version v3.6.3", "3.6.3", false},
		{"MongoDB shell version: 3.2.22\ngit version: abc", "3.2.22", false},
		{"MongoDB shell version v4.4.29\nBuild Info: {}", "4.4.29", false},
		{"no numbers here", "", true},
		{"version 7", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.banner, func(t *testing.T) {
			got, err := ParseVersion(tt.banner)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBannerIsCached(t *testing.T) {
	calls := 0
	version := func(ctx context.Context, path string) (string, error) {
		calls++
		assert.Equal(t, "mongo", path)
		return "\x1b[1mMongoDB shell version v3.6.3\x1b[0m\ngit version: 9586e557d54ef70f9ca4b43c26892cd55257e1a5\n", nil
	}
	h := newHarness(t, nil, WithVersionFunc(version))

	banner, err := h.mgr.Banner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MongoDB shell version v3.6.3\ngit version: 9586e557d54ef70f9ca4b43c26892cd55257e1a5", banner)

	v, err := h.mgr.LanguageVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.6.3", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, h.spawner.Count(), "version lookup must not start the shell")
}

func TestBannerErrorNotCached(t *testing.T) {
	calls := 0
	version := func(ctx context.Context, path string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("not found")
		}
		return "MongoDB shell version v3.6.3", nil
	}
	h := newHarness(t, nil, WithVersionFunc(version))

	_, err := h.mgr.LanguageVersion(context.Background())
	assert.Error(t, err)

	v, err := h.mgr.LanguageVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.6.3", v)
}
