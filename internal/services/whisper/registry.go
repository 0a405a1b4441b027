package whisper

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"glossa/internal/logging"
	"glossa/internal/services"
)

// DefaultModel is used when a job does not name a model.
const DefaultModel = "base"

// knownModels lists the model keys the recognizer accepts.
var knownModels = map[string]bool{
	"tiny":     true,
	"base":     true,
	"small":    true,
	"medium":   true,
	"large-v2": true,
}

// ggml weights begin with the magic 0x67676d6c written little-endian.
var weightsMagic = []byte{0x6c, 0x6d, 0x67, 0x67}

// KnownModel reports whether key names a recognized model size. An empty
// key is valid and resolves to DefaultModel.
func KnownModel(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	return key == "" || knownModels[key]
}

// ModelKeys lists the recognized model keys, sorted.
func ModelKeys() []string {
	keys := make([]string, 0, len(knownModels))
	for key := range knownModels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// WeightsPath returns where the weights file for a model key lives inside
// dir. An empty key resolves to DefaultModel.
func WeightsPath(dir, key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		key = DefaultModel
	}
	return filepath.Join(dir, "ggml-"+key+".bin")
}

// Model is a validated handle to local speech-model weights.
type Model struct {
	Key  string
	Path string
	Size int64
}

// Registry resolves model keys to validated weights files. Handles are
// loaded lazily, cached for the life of the process, and reused across
// sequential jobs. Safe for concurrent use.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	models map[string]*Model
	closed bool
}

// NewRegistry constructs a registry over the directory holding ggml weights
// files (ggml-<model>.bin).
func NewRegistry(dir string, logger *slog.Logger) *Registry {
	return &Registry{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "model-registry"),
		models: make(map[string]*Model),
	}
}

// Acquire returns the cached handle for the model key, resolving and
// validating the weights file on first use. Missing, empty, or corrupt
// weights fail with a model-load error.
func (r *Registry) Acquire(key string) (*Model, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		key = DefaultModel
	}
	if !knownModels[key] {
		return nil, services.Wrap(services.ErrModelLoad, "transcribing", "acquire model", fmt.Sprintf("unknown model %q", key), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, services.Wrap(services.ErrModelLoad, "transcribing", "acquire model", "registry is closed", nil)
	}
	if model, ok := r.models[key]; ok {
		return model, nil
	}

	path := WeightsPath(r.dir, key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "transcribing", "acquire model", fmt.Sprintf("weights not found at %s", path), err)
	}
	if info.Size() == 0 {
		return nil, services.Wrap(services.ErrModelLoad, "transcribing", "acquire model", fmt.Sprintf("weights file %s is empty", path), nil)
	}
	if err := checkWeightsHeader(path); err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "transcribing", "acquire model", fmt.Sprintf("weights file %s is corrupt", path), err)
	}

	model := &Model{Key: key, Path: path, Size: info.Size()}
	r.models[key] = model
	r.logger.Info("speech model loaded",
		logging.String("model", key),
		logging.Int64("bytes", info.Size()),
	)
	return model, nil
}

// Loaded reports the model keys currently cached, sorted for stable output.
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.models))
	for key := range r.models {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Close drops all cached handles. Subsequent Acquire calls fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.models = nil
	return nil
}

func checkWeightsHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	header := make([]byte, len(weightsMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(header, weightsMagic) {
		return fmt.Errorf("unexpected header %x", header)
	}
	return nil
}
