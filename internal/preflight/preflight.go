package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"glossa/internal/config"
	"glossa/internal/services/whisper"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable readiness check for the configuration:
// directory permissions, external binaries, speech model weights, and
// translation credentials.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if strings.TrimSpace(cfg.Paths.OutputDir) != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}

	results = append(results,
		CheckBinary("FFmpeg", cfg.FFmpegBinary()),
		CheckBinary("FFprobe", cfg.FFprobeBinary()),
		CheckBinary("Whisper", cfg.WhisperBinary()),
		CheckModelWeights(cfg.Transcription.ModelDir, cfg.Transcription.Model),
		CheckTranslationCredentials(cfg.Translation.Engine, cfg.Translation.APIKey),
	)
	return results
}

// Failures filters results down to the checks that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary verifies that an external tool resolves on PATH or at its
// configured location.
func CheckBinary(name, command string) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Name: name, Detail: "no binary configured"}
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not found)", command)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckModelWeights verifies that the configured speech model's weights file
// exists and is non-empty. Deep validation happens when the model is first
// acquired.
func CheckModelWeights(dir, model string) Result {
	const name = "Speech model"
	if strings.TrimSpace(dir) == "" {
		return Result{Name: name, Detail: "model directory not configured"}
	}
	path := whisper.WeightsPath(dir, model)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: weights not downloaded)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: weights file is empty)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckTranslationCredentials verifies the configured engine has an API key.
// Reachability is not probed; the first translation request surfaces that.
func CheckTranslationCredentials(engine, apiKey string) Result {
	const name = "Translation engine"
	engine = strings.ToLower(strings.TrimSpace(engine))
	if engine == "" {
		engine = "openai"
	}
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: API key missing)", engine)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (key configured)", engine)}
}
