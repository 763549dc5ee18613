package whisper

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fmueller/voxdict/internal/platform"
)

const EnginePathEnv = "VOXDICT_WHISPER_PATH"

// ResolveEnginePath picks the whisper-cli binary. Precedence: the
// VOXDICT_WHISPER_PATH override, the configured path, a bundled copy next to
// the voxdict executable, then whisper-cli on PATH.
func ResolveEnginePath(configured string, selfExecutable string) (string, error) {
	if override := strings.TrimSpace(os.Getenv(EnginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return "", fmt.Errorf("%s is not executable: %w", EnginePathEnv, err)
		}
		return override, nil
	}

	if configured = strings.TrimSpace(configured); configured != "" {
		if err := ensureExecutable(configured); err != nil {
			return "", fmt.Errorf("%w: engine.path %s: %v", ErrLaunch, configured, err)
		}
		return configured, nil
	}

	if selfExecutable != "" {
		for _, candidate := range EnginePathCandidates(selfExecutable) {
			if err := ensureExecutable(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	if found, err := exec.LookPath(engineBinaryName()); err == nil {
		return found, nil
	}

	return "", fmt.Errorf("%w: %s not found next to %s or on PATH; install whisper.cpp or set engine.path", ErrLaunch, engineBinaryName(), selfExecutable)
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, platform.NormalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, "bin", engineName),
		filepath.Join(binDir, engineName),
	}
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
