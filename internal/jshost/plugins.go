package jshost

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

// pluginDirectiveRegex matches the optional @plugin directive naming a
// plugin; without it the file base name is used.
var pluginDirectiveRegex = regexp.MustCompile(`(?m)^//\s*@plugin\s+(\S+)`)

// LoadPlugins loads every .js plugin from dir. A plugin script must
// evaluate to an object whose properties are the dispatchable methods.
// A missing directory is not an error.
func (h *Host) LoadPlugins(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		h.logger.Warn().Str("directory", dir).Msg("plugins directory does not exist")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat plugins directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plugins path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read plugins directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			h.logger.Error().Err(err).Str("file", entry.Name()).Msg("failed to read plugin")
			continue
		}
		name := pluginName(path, string(content))
		if err := h.RegisterPlugin(name, string(content)); err != nil {
			h.logger.Error().Err(err).Str("file", entry.Name()).Msg("failed to load plugin")
			continue
		}
		loaded++
	}

	h.logger.Info().Int("loaded", loaded).Str("directory", dir).Msg("plugins loaded")
	return nil
}

// RegisterPlugin evaluates src and registers its resulting object under
// name. Methods become available through Dispatch.
func (h *Host) RegisterPlugin(name, src string) error {
	h.vmMu.Lock()
	defer h.vmMu.Unlock()

	if _, exists := h.plugins[name]; exists {
		return fmt.Errorf("duplicate plugin %q", name)
	}

	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return fmt.Errorf("compile plugin %q: %w", name, err)
	}
	val, err := h.vm.RunProgram(prog)
	if err != nil {
		return fmt.Errorf("run plugin %q: %w", name, err)
	}
	obj, ok := val.(*goja.Object)
	if !ok {
		return fmt.Errorf("plugin %q must evaluate to an object, got %s", name, val)
	}

	h.plugins[name] = obj
	return nil
}

// pluginName derives the plugin name from the @plugin directive, falling
// back to the file base name.
func pluginName(path, src string) string {
	if m := pluginDirectiveRegex.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return strings.TrimSuffix(filepath.Base(path), ".js")
}
