package cmd

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionString(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.25.6",
		Main:      debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "4f1c2a9b7d3e8f60aa11"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	assert.Equal(t, "conjugar v0.3.0 (4f1c2a9b7d3e-dirty) go1.25.6", versionString(info))

	assert.Equal(t, "conjugar (devel)", versionString(nil))

	old := version
	version = "v1.0.0"
	t.Cleanup(func() { version = old })
	assert.Equal(t, "conjugar v1.0.0 go1.25.6", versionString(&debug.BuildInfo{GoVersion: "go1.25.6"}))
}
