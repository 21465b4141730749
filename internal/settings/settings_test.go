package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFor(t *testing.T) {
	assert.Equal(t, "scripts/menu.yaml", PathFor("scripts/menu.js"))
	assert.Equal(t, "/abs/dir/bot.tar.yaml", PathFor("/abs/dir/bot.tar.gz"))
	assert.Equal(t, "plain.yaml", PathFor("plain"))
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.yaml")

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())
	assert.Empty(t, f.Sections())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "open must not create the file")
}

func TestLoad_TypedGetters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	content := `
player:
  name: crosshair
  speed: 2.5
  lives: 3
  wait: 250ms
debug:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"debug", "player"}, f.Sections())
	assert.Equal(t, "crosshair", f.GetString("player", "name", ""))
	assert.InDelta(t, 2.5, f.GetFloat("player", "speed", 0), 0.0001)
	assert.Equal(t, 3, f.GetInt("player", "lives", 0))
	assert.Equal(t, 250*time.Millisecond, f.GetDuration("player", "wait", 0))
	assert.True(t, f.GetBool("debug", "enabled", false))
}

func TestGetters_FallBackToDefault(t *testing.T) {
	f := New("x.yaml")
	f.SetValue("player", "lives", "many")

	assert.Equal(t, 7, f.GetInt("player", "lives", 7), "malformed value")
	assert.Equal(t, "dflt", f.GetString("player", "missing", "dflt"))
	assert.False(t, f.GetBool("nosection", "k", false))
	assert.Equal(t, time.Second, f.GetDuration("player", "lives", time.Second))
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.yaml")

	f := New(path)
	f.SetValue("player", "lives", 3)
	f.SetValue("player", "name", "crosshair")
	f.SetValue("debug", "enabled", true)
	require.NoError(t, f.Save())

	again, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 3, again.GetInt("player", "lives", 0))
	assert.Equal(t, "crosshair", again.GetString("player", "name", ""))
	assert.True(t, again.GetBool("debug", "enabled", false))
	assert.Equal(t, []string{"lives", "name"}, again.Keys("player"))
}

func TestDelete(t *testing.T) {
	f := New("x.yaml")
	f.SetValue("a", "k", 1)
	f.Delete("a", "k")
	f.Delete("missing", "k")

	assert.Empty(t, f.Sections())
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("player: [1, 2"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse settings")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, f.Sections())
}
