package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "voxdict"

// Env carries the environment values directory resolution depends on, so the
// resolution itself stays a pure function.
type Env struct {
	OS            string
	Home          string
	XDGDataHome   string
	XDGConfigHome string
	XDGStateHome  string
	XDGRuntimeDir string
	TempDir       string
	UID           int
}

func CurrentEnv() (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("resolve user home: %w", err)
	}

	return Env{
		OS:            runtime.GOOS,
		Home:          home,
		XDGDataHome:   os.Getenv("XDG_DATA_HOME"),
		XDGConfigHome: os.Getenv("XDG_CONFIG_HOME"),
		XDGStateHome:  os.Getenv("XDG_STATE_HOME"),
		XDGRuntimeDir: os.Getenv("XDG_RUNTIME_DIR"),
		TempDir:       os.TempDir(),
		UID:           os.Getuid(),
	}, nil
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

func (e Env) ModelDir() (string, error) {
	dataDir, err := e.dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

func (e Env) ConfigFile() (string, error) {
	if e.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch e.OS {
	case "linux":
		if e.XDGConfigHome != "" {
			return filepath.Join(e.XDGConfigHome, appName, "config.yaml"), nil
		}
		return filepath.Join(e.Home, ".config", appName, "config.yaml"), nil
	case "darwin":
		return filepath.Join(e.Home, "Library", "Application Support", appName, "config.yaml"), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", e.OS)
	}
}

func (e Env) LogFile() (string, error) {
	if e.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch e.OS {
	case "linux":
		if e.XDGStateHome != "" {
			return filepath.Join(e.XDGStateHome, appName, "daemon.log"), nil
		}
		return filepath.Join(e.Home, ".local", "state", appName, "daemon.log"), nil
	case "darwin":
		return filepath.Join(e.Home, "Library", "Logs", appName, "daemon.log"), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", e.OS)
	}
}

// SocketPath is where the daemon listens for toggle requests. XDG_RUNTIME_DIR
// is per-user and tmpfs-backed; without it the socket lands in a uid-scoped
// name under the temp dir.
func (e Env) SocketPath() string {
	if e.XDGRuntimeDir != "" {
		return filepath.Join(e.XDGRuntimeDir, appName+".sock")
	}
	return filepath.Join(e.tempDir(), fmt.Sprintf("%s-%d.sock", appName, e.UID))
}

// WorkDir is the parent of every per-session artifact directory.
func (e Env) WorkDir(override string) string {
	if override != "" {
		return filepath.Clean(override)
	}
	return filepath.Join(e.tempDir(), fmt.Sprintf("%s-%d", appName, e.UID))
}

func (e Env) tempDir() string {
	if e.TempDir == "" {
		return os.TempDir()
	}
	return e.TempDir
}

func (e Env) dataDir() (string, error) {
	if e.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch e.OS {
	case "linux":
		if e.XDGDataHome != "" {
			return filepath.Join(e.XDGDataHome, appName), nil
		}
		return filepath.Join(e.Home, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(e.Home, "Library", "Application Support", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", e.OS)
	}
}
