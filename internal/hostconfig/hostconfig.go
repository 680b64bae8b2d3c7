// Package hostconfig registers the plugin in an opencode.json host
// configuration and removes it again. Edits go through gjson/sjson so
// unrelated keys keep their values and order.
package hostconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shariqriazz/ocaauth/internal/jsonutil"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// PluginName is the entry added to the host plugin list.
	PluginName = "opencode-oca-auth"
	// SchemaURL is set when the document has no $schema.
	SchemaURL = "https://opencode.ai/config.json"
	// DefaultModelID is the model seeded under provider.oca.models.
	DefaultModelID = "gpt-oss-120b"
	// LegacyModelID was seeded by older installs and is removed on uninstall.
	LegacyModelID = "oca-default"

	// DefaultFile is used when no path is given.
	DefaultFile = "opencode.json"
)

var errNotJSON = errors.New("host config is not valid JSON")

func normalize(doc []byte) ([]byte, error) {
	if strings.TrimSpace(string(doc)) == "" {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(doc) {
		return nil, errNotJSON
	}
	if !gjson.ParseBytes(doc).IsObject() {
		return []byte("{}"), nil
	}
	return doc, nil
}

// Install adds the plugin, the schema and the default model. Running it
// twice yields the same document.
func Install(doc []byte) ([]byte, error) {
	doc, err := normalize(doc)
	if err != nil {
		return nil, err
	}

	if schema := gjson.GetBytes(doc, jsonutil.EscapeKey("$schema")); schema.Type != gjson.String || schema.Str == "" {
		if doc, err = jsonutil.Set(doc, jsonutil.EscapeKey("$schema"), SchemaURL); err != nil {
			return nil, err
		}
	}

	pluginKey := "plugin"
	if gjson.GetBytes(doc, "plugins").IsArray() {
		pluginKey = "plugins"
	}
	plugins := stringItems(gjson.GetBytes(doc, pluginKey))
	if !contains(plugins, PluginName) {
		plugins = append(plugins, PluginName)
	}
	if doc, err = jsonutil.Set(doc, pluginKey, plugins); err != nil {
		return nil, err
	}

	providerKey := "provider"
	if gjson.GetBytes(doc, "providers").IsObject() {
		providerKey = "providers"
	}
	if doc, err = ensureObject(doc, providerKey); err != nil {
		return nil, err
	}
	ocaPath := jsonutil.Join(providerKey, "oca")
	if doc, err = ensureObject(doc, ocaPath); err != nil {
		return nil, err
	}

	modelsPath := ocaPath + ".models"
	models := gjson.GetBytes(doc, modelsPath)
	if models.IsArray() {
		for _, item := range models.Array() {
			if item.IsObject() && item.Get("id").String() == DefaultModelID {
				return doc, nil
			}
		}
		return jsonutil.Set(doc, modelsPath+".-1", map[string]any{"id": DefaultModelID})
	}
	if doc, err = ensureObject(doc, modelsPath); err != nil {
		return nil, err
	}
	return ensureObject(doc, modelsPath+"."+jsonutil.EscapeKey(DefaultModelID))
}

// Uninstall removes the plugin and the seeded models and prunes containers
// left empty. Other plugins, providers and models are preserved.
func Uninstall(doc []byte) ([]byte, error) {
	doc, err := normalize(doc)
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"plugin", "plugins"} {
		list := gjson.GetBytes(doc, key)
		if !list.IsArray() {
			continue
		}
		kept := make([]string, 0, len(list.Array()))
		for _, item := range list.Array() {
			if item.Type == gjson.String && item.Str == PluginName {
				continue
			}
			kept = append(kept, item.Raw)
		}
		if doc, err = sjson.SetRawBytes(doc, key, []byte("["+strings.Join(kept, ",")+"]")); err != nil {
			return nil, err
		}
	}

	for _, key := range []string{"provider", "providers"} {
		if doc, err = cleanProvider(doc, key); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func cleanProvider(doc []byte, providerKey string) ([]byte, error) {
	if !gjson.GetBytes(doc, providerKey).IsObject() {
		return doc, nil
	}
	ocaPath := jsonutil.Join(providerKey, "oca")
	if !gjson.GetBytes(doc, ocaPath).IsObject() {
		return doc, nil
	}

	var err error
	modelsPath := ocaPath + ".models"
	models := gjson.GetBytes(doc, modelsPath)
	switch {
	case models.IsArray():
		kept := make([]string, 0, len(models.Array()))
		for _, item := range models.Array() {
			if item.IsObject() && isSeeded(item.Get("id").String()) {
				continue
			}
			kept = append(kept, item.Raw)
		}
		if len(kept) == 0 {
			doc, err = sjson.DeleteBytes(doc, modelsPath)
		} else {
			doc, err = sjson.SetRawBytes(doc, modelsPath, []byte("["+strings.Join(kept, ",")+"]"))
		}
	case models.IsObject():
		for _, id := range []string{DefaultModelID, LegacyModelID} {
			if doc, err = sjson.DeleteBytes(doc, modelsPath+"."+jsonutil.EscapeKey(id)); err != nil {
				return nil, err
			}
		}
		if jsonutil.IsEmptyObject(gjson.GetBytes(doc, modelsPath)) {
			doc, err = sjson.DeleteBytes(doc, modelsPath)
		}
	}
	if err != nil {
		return nil, err
	}

	if jsonutil.IsEmptyObject(gjson.GetBytes(doc, ocaPath)) {
		if doc, err = sjson.DeleteBytes(doc, ocaPath); err != nil {
			return nil, err
		}
	}
	if jsonutil.IsEmptyObject(gjson.GetBytes(doc, providerKey)) {
		if doc, err = sjson.DeleteBytes(doc, providerKey); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// InstallFile applies Install to the file at path, creating it when missing.
func InstallFile(path string) error {
	return rewrite(path, Install)
}

// UninstallFile applies Uninstall to the file at path.
func UninstallFile(path string) error {
	return rewrite(path, Uninstall)
}

func rewrite(path string, edit func([]byte) ([]byte, error)) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	next, err := edit(data)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if errWrite := os.WriteFile(path, jsonutil.Pretty(next), 0o644); errWrite != nil {
		return fmt.Errorf("write %s: %w", path, errWrite)
	}
	return nil
}

func ensureObject(doc []byte, path string) ([]byte, error) {
	if gjson.GetBytes(doc, path).IsObject() {
		return doc, nil
	}
	return sjson.SetRawBytes(doc, path, []byte("{}"))
}

func stringItems(r gjson.Result) []string {
	out := make([]string, 0)
	if !r.IsArray() {
		return out
	}
	for _, item := range r.Array() {
		if item.Type == gjson.String {
			out = append(out, item.Str)
		}
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func isSeeded(id string) bool {
	return id == DefaultModelID || id == LegacyModelID
}
