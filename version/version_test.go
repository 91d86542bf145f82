package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.CommitHash)
}

func TestInfoString(t *testing.T) {
	dev := Info{Version: "dev", CommitHash: "abc1234def", BuildTime: "now"}
	assert.Equal(t, "strata dev (commit abc1234def, built now)", dev.String())
	assert.Equal(t, "abc1234", dev.Short())

	tagged := Info{Version: "v0.3.0", CommitHash: "abc", BuildTime: "now", Modified: true}
	assert.Equal(t, "strata v0.3.0 (commit abc+dirty, built now)", tagged.String())
	assert.Equal(t, "abc", tagged.Short())
}

func TestWithBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/teranos/strata", Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	t.Run("fills unset fields", func(t *testing.T) {
		got := withBuildInfo(Info{CommitHash: unset, BuildTime: "unknown", Version: unset}, bi)
		assert.Equal(t, "v0.4.1", got.Version)
		assert.Equal(t, "0123456789abcdef", got.CommitHash)
		assert.Equal(t, "2026-10-01T12:00:00Z", got.BuildTime)
		assert.True(t, got.Modified)
	})

	t.Run("ldflags win", func(t *testing.T) {
		got := withBuildInfo(Info{CommitHash: "feedbee", BuildTime: "release", Version: "v1.0.0"}, bi)
		assert.Equal(t, "v1.0.0", got.Version)
		assert.Equal(t, "feedbee", got.CommitHash)
		assert.Equal(t, "release", got.BuildTime)
	})

	t.Run("devel module version is ignored", func(t *testing.T) {
		devel := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
		got := withBuildInfo(Info{CommitHash: unset, BuildTime: "unknown", Version: unset}, devel)
		assert.Equal(t, unset, got.Version)
	})
}
