package hostconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const modern = `{
  "$schema": "https://opencode.ai/config.json",
  "plugin": ["existing-plugin"],
  "provider": {
    "openai": {"models": {"gpt-4.1": {}}}
  }
}`

const legacy = `{
  "plugins": ["existing-plugin"],
  "providers": {
    "openai": {"models": {"gpt-4.1": {}}}
  }
}`

func TestInstall_ModernConfig(t *testing.T) {
	next, err := Install([]byte(modern))
	require.NoError(t, err)

	assert.Equal(t, []any{"existing-plugin", PluginName}, gjson.GetBytes(next, "plugin").Value())
	assert.True(t, gjson.GetBytes(next, "provider.oca.models."+DefaultModelID).IsObject())
	assert.True(t, gjson.GetBytes(next, `provider.openai.models.gpt-4\.1`).Exists())
	assert.Equal(t, SchemaURL, gjson.GetBytes(next, "$schema").String())
}

func TestInstall_Idempotent(t *testing.T) {
	once, err := Install([]byte(modern))
	require.NoError(t, err)
	twice, err := Install(once)
	require.NoError(t, err)
	assert.JSONEq(t, string(once), string(twice))
}

func TestInstall_LegacyKeys(t *testing.T) {
	next, err := Install([]byte(legacy))
	require.NoError(t, err)

	assert.Contains(t, gjson.GetBytes(next, "plugins").Value(), PluginName)
	assert.False(t, gjson.GetBytes(next, "plugin").Exists())
	assert.True(t, gjson.GetBytes(next, "providers.oca.models."+DefaultModelID).IsObject())
	assert.False(t, gjson.GetBytes(next, "provider").Exists())
}

func TestInstall_EmptyAndNonObjectInput(t *testing.T) {
	for _, input := range []string{"", "  ", "[]", `"text"`} {
		next, err := Install([]byte(input))
		require.NoError(t, err, input)
		assert.Equal(t, SchemaURL, gjson.GetBytes(next, "$schema").String())
		assert.Equal(t, []any{PluginName}, gjson.GetBytes(next, "plugin").Value())
	}

	_, err := Install([]byte(`{broken`))
	assert.Error(t, err)
}

func TestInstall_ArrayModelsAddsDefaultOnce(t *testing.T) {
	input := `{"plugin":["existing-plugin"],"provider":{"oca":{"models":[{"id":"custom","name":"Custom Model"}]}}}`
	once, err := Install([]byte(input))
	require.NoError(t, err)
	twice, err := Install(once)
	require.NoError(t, err)

	models := gjson.GetBytes(twice, "provider.oca.models").Array()
	require.Len(t, models, 2)
	assert.Equal(t, "Custom Model", models[0].Get("name").String())
	assert.Equal(t, DefaultModelID, models[1].Get("id").String())
}

func TestUninstall_RemovesPluginAndDefaults(t *testing.T) {
	installed, err := Install([]byte(modern))
	require.NoError(t, err)
	next, err := Uninstall(installed)
	require.NoError(t, err)

	assert.Equal(t, []any{"existing-plugin"}, gjson.GetBytes(next, "plugin").Value())
	assert.True(t, gjson.GetBytes(next, `provider.openai.models.gpt-4\.1`).Exists())
	assert.False(t, gjson.GetBytes(next, "provider.oca").Exists())
}

func TestUninstall_LegacyKeys(t *testing.T) {
	installed, err := Install([]byte(legacy))
	require.NoError(t, err)
	next, err := Uninstall(installed)
	require.NoError(t, err)

	assert.Equal(t, []any{"existing-plugin"}, gjson.GetBytes(next, "plugins").Value())
	assert.False(t, gjson.GetBytes(next, "providers.oca").Exists())
}

func TestUninstall_ArrayModels(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantModel string
		wantOCA   bool
	}{
		{
			name:      "keeps custom models",
			input:     `{"provider":{"oca":{"models":[{"id":"custom","name":"Custom Model"},{"id":"gpt-oss-120b"}]}}}`,
			wantModel: `[{"id":"custom","name":"Custom Model"}]`,
			wantOCA:   true,
		},
		{
			name:  "prunes empty oca provider",
			input: `{"plugin":["opencode-oca-auth"],"provider":{"oca":{"models":[{"id":"oca-default"}]}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Uninstall([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOCA, gjson.GetBytes(next, "provider.oca").Exists())
			if tt.wantModel != "" {
				assert.JSONEq(t, tt.wantModel, gjson.GetBytes(next, "provider.oca.models").Raw)
			}
		})
	}
}

func TestUninstall_KeepsOtherOCASettings(t *testing.T) {
	input := `{"provider":{"oca":{"options":{"timeout":10},"models":{"gpt-oss-120b":{},"oca-default":{}}}}}`
	next, err := Uninstall([]byte(input))
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":{"oca":{"options":{"timeout":10}}}}`, string(next))
}

func TestInstallFile_CreatesAndRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opencode.json")

	require.NoError(t, InstallFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"")
	assert.True(t, gjson.GetBytes(data, "provider.oca.models."+DefaultModelID).Exists())

	require.NoError(t, UninstallFile(path))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(data, "provider").Exists())
	assert.True(t, gjson.GetBytes(data, "plugin").IsArray())
	assert.Empty(t, gjson.GetBytes(data, "plugin").Array())
}
