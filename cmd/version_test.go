package cmd

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/ondus-bridge/version"
)

func TestWriteVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, false))
	assert.True(t, strings.HasPrefix(buf.String(), "ondus-bridge "+version.Version+" ("))

	buf.Reset()
	require.NoError(t, writeVersion(&buf, true))

	var info buildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.Equal(t, "ondus-bridge/"+version.Version, info.UserAgent)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestCheckRequiredFlags(t *testing.T) {
	err := checkRequiredFlags("test.never-set-a", "test.never-set-b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items `test.never-set-a`, `test.never-set-b`")
}
