package torch

import (
	"fmt"
	"sync"
)

var (
	mu          sync.Mutex
	initialized bool
	libHandle   uintptr
	libPath     string
	native      *nativeAPI
)

// SetSharedLibraryPath sets the path to the native shim shared library.
// It must be called before Initialize and cannot change afterwards.
func SetSharedLibraryPath(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized && libPath != path {
		return fmt.Errorf("cannot change library path after the runtime is initialized")
	}
	libPath = path
	return nil
}

// Initialize loads the native shim and registers its entry points.
// It is idempotent; subsequent calls return nil.
func Initialize() error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}
	if libPath == "" {
		return fmt.Errorf("shared library path not set; call SetSharedLibraryPath or InitializeWithBootstrap first")
	}

	handle, err := loadLibrary(libPath)
	if err != nil || handle == 0 {
		if err != nil {
			return fmt.Errorf("failed to load native library %q: %w", libPath, err)
		}
		return fmt.Errorf("failed to load native library %q", libPath)
	}

	api, err := registerNative(handle)
	if err != nil {
		_ = closeLibrary(handle)
		return err
	}

	libHandle = handle
	native = api
	initialized = true
	return nil
}

// Teardown unloads the native shim. Any still-live wrapper becomes unusable;
// it is the caller's responsibility to close tensors, generators, and script
// modules first.
func Teardown() error {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return nil
	}

	handle := libHandle
	libHandle = 0
	native = nil
	initialized = false
	return closeLibrary(handle)
}

// IsInitialized returns true if the native shim is loaded.
func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return initialized
}

// SharedLibraryPath returns the configured shim path.
func SharedLibraryPath() string {
	mu.Lock()
	defer mu.Unlock()
	return libPath
}

// api returns the registered entry points, or an error if the runtime is
// not initialized. Callers hold the returned pointer only for the duration
// of one native call sequence.
func api() (*nativeAPI, error) {
	mu.Lock()
	defer mu.Unlock()
	if !initialized || native == nil {
		return nil, ErrNotInitialized
	}
	return native, nil
}

// Version returns the native library version string, for example "2.5.1+cpu".
func Version() (string, error) {
	n, err := api()
	if err != nil {
		return "", err
	}

	ptr := n.version()
	if ptr == 0 {
		return "", lastError(n, "THSTorch_get_version")
	}
	return CstringToGo(ptr), nil
}

// ManualSeed seeds the native library's default random generators.
func ManualSeed(seed int64) error {
	n, err := api()
	if err != nil {
		return err
	}
	n.manualSeed(seed)
	return checkErr(n, "THSTorch_manual_seed")
}
