package config

import (
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LabelWatcher re-reads the configured volume label on every call so that
// edits to the config file take effect without a restart.
type LabelWatcher struct {
	path string

	mu   sync.Mutex
	last string
}

// NewLabelWatcher returns a watcher over the config file at path; initial
// is returned until the file can be read.
func NewLabelWatcher(path, initial string) *LabelWatcher {
	return &LabelWatcher{path: path, last: strings.TrimSpace(initial)}
}

// Label returns the current label. The environment override wins over the file.
func (w *LabelWatcher) Label() string {
	if val, ok := os.LookupEnv("CLIPDRIVE_VOLUME_LABEL"); ok {
		return strings.TrimSpace(val)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		return w.last
	}
	var doc struct {
		VolumeLabel string `yaml:"volume_label"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return w.last
	}
	w.last = strings.TrimSpace(doc.VolumeLabel)
	return w.last
}
