package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalName returns the override file that sits next to name,
// "config.json5" becomes "config.local.json5".
func LocalName(name string) string {
	dirname := filepath.Dir(name)
	basename := filepath.Base(name)
	ext := filepath.Ext(basename)
	prefix := strings.TrimSuffix(basename, ext)
	return filepath.Join(dirname, fmt.Sprintf("%s.local%s", prefix, ext))
}

func readIfExists(name string) ([]byte, error) {
	contents, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return contents, err
}

// Read layers up to two configuration files on top of defaults,
// where a higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// Missing files are skipped, found reports whether any file existed.
// Note that the local file cannot reset a value back to its zero value.
func Read[T any](name string, defaults T) (out T, found bool, err error) {
	out = defaults

	base, err := readIfExists(name)
	if err != nil {
		return out, false, err
	}
	if len(base) > 0 {
		err = json5.Unmarshal(base, &out)
		if err != nil {
			return out, false, fmt.Errorf("parse %s: %w", name, err)
		}
		found = true
	}

	localName := LocalName(name)
	local, err := readIfExists(localName)
	if err != nil {
		return out, found, err
	}
	if len(local) > 0 {
		var override T
		err = json5.Unmarshal(local, &override)
		if err != nil {
			return out, found, fmt.Errorf("parse %s: %w", localName, err)
		}
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, found, err
		}
		slog.Info("merging config with local overrides", "local", localName)
		found = true
	}

	return out, found, nil
}
