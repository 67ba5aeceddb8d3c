package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/colonyops/devtodo/internal/core/config"
	"github.com/colonyops/devtodo/internal/core/todo"
)

// TargetsCheck verifies that every target directory is usable and
// reports how many entries it currently holds.
type TargetsCheck struct {
	Config *config.Config
}

func (c *TargetsCheck) Name() string { return "Targets" }

func (c *TargetsCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if len(c.Config.Targets) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "targets configured",
			Status: StatusWarn,
			Detail: "no targets in config",
		})
		return result
	}

	for _, name := range sortedKeys(c.Config.Targets) {
		result.Items = append(result.Items, checkDir(name, c.Config.Targets[name].Directory))
	}

	return result
}

func checkDir(name, dir string) CheckItem {
	item := CheckItem{Label: name}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		item.Status = StatusWarn
		item.Detail = fmt.Sprintf("%s does not exist yet, sync will create it", dir)
		return item
	case err != nil:
		item.Status = StatusFail
		item.Detail = err.Error()
		return item
	case !info.IsDir():
		item.Status = StatusFail
		item.Detail = fmt.Sprintf("%s is not a directory", dir)
		return item
	}

	// Probe writability; a read-only directory fails every reconcile.
	probe, err := os.CreateTemp(dir, ".devtodo-doctor-*")
	if err != nil {
		item.Status = StatusFail
		item.Detail = fmt.Sprintf("not writable: %v", err)
		return item
	}
	probe.Close()
	os.Remove(probe.Name())

	managed, foreign := countEntries(dir)
	item.Status = StatusPass
	item.Detail = fmt.Sprintf("%d entries", managed)
	if foreign > 0 {
		item.Detail += fmt.Sprintf(", %d unmanaged files ignored", foreign)
	}
	return item
}

func countEntries(dir string) (managed, foreign int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), todo.Extension) {
			continue
		}
		if _, err := todo.Open(filepath.Join(dir, entry.Name())); err != nil {
			foreign++
			continue
		}
		managed++
	}
	return managed, foreign
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
