package torch

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	// DefaultShimVersion is the default native shim version used by bootstrap.
	// This should track the shim version validated by CI and examples.
	DefaultShimVersion = "2.5.1"

	// minimumShimVersion is the oldest shim whose symbol table this binding
	// understands.
	minimumShimVersion = "2.2.0"

	defaultBootstrapBaseURL = "https://github.com/tensorware/libtorchbind/releases/download"
)

var errSharedLibraryNotFound = errors.New("native shim shared library not found")
var bootstrapCacheFallbackWarnOnce sync.Once

// BootstrapOption configures EnsureSharedLibrary.
type BootstrapOption func(*bootstrapConfig) error

type bootstrapConfig struct {
	libraryPath     string
	cacheDir        string
	version         string
	disableDownload bool
	expectedSHA256  string
	baseURL         string
	httpClient      *http.Client
	goos            string
	goarch          string
}

type shimArtifact struct {
	platform       string
	primaryLibrary string
	libraryGlob    string
}

// WithLibraryPath forces bootstrap to use an existing shim shared library path.
func WithLibraryPath(path string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("bootstrap library path cannot be empty")
		}
		cfg.libraryPath = path
		return nil
	}
}

// WithCacheDir sets the cache directory used by bootstrap downloads and extraction.
func WithCacheDir(dir string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return fmt.Errorf("bootstrap cache directory cannot be empty")
		}
		cfg.cacheDir = dir
		return nil
	}
}

// WithVersion sets the shim version to download (for example: 2.5.1).
func WithVersion(version string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		version = strings.TrimSpace(version)
		if version == "" {
			return fmt.Errorf("bootstrap version cannot be empty")
		}
		cfg.version = version
		return nil
	}
}

// WithDisableDownload enables or disables network download in bootstrap mode.
func WithDisableDownload(disable bool) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		cfg.disableDownload = disable
		return nil
	}
}

// WithExpectedSHA256 enforces an expected SHA256 checksum for the downloaded archive.
func WithExpectedSHA256(checksum string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		checksum = strings.TrimSpace(strings.ToLower(checksum))
		if checksum == "" {
			return fmt.Errorf("expected SHA256 checksum cannot be empty")
		}
		if len(checksum) != 64 {
			return fmt.Errorf("expected SHA256 checksum must be 64 hex characters")
		}
		for _, r := range checksum {
			if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
				return fmt.Errorf("expected SHA256 checksum must be lowercase hex")
			}
		}
		cfg.expectedSHA256 = checksum
		return nil
	}
}

func withBootstrapBaseURL(baseURL string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		baseURL = strings.TrimSpace(baseURL)
		if baseURL == "" {
			return fmt.Errorf("bootstrap base URL cannot be empty")
		}
		cfg.baseURL = baseURL
		return nil
	}
}

func withBootstrapHTTPClient(client *http.Client) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		if client == nil {
			return fmt.Errorf("bootstrap HTTP client cannot be nil")
		}
		cfg.httpClient = client
		return nil
	}
}

// EnsureSharedLibrary ensures a native shim shared library is available and
// returns a resolved absolute path to it.
//
// This function is opt-in and does not change explicit-path behavior.
func EnsureSharedLibrary(opts ...BootstrapOption) (string, error) {
	cfg, err := resolveBootstrapConfig(opts...)
	if err != nil {
		return "", err
	}

	if cfg.libraryPath != "" {
		return validateLibraryFile(cfg.libraryPath)
	}

	artifact, err := resolveShimArtifact(cfg.goos, cfg.goarch)
	if err != nil {
		return "", err
	}

	installDir := filepath.Join(cfg.cacheDir, artifact.archiveName(cfg.version))
	if path, resolveErr := resolveExtractedLibraryPath(installDir, artifact); resolveErr == nil {
		return path, nil
	} else if !errors.Is(resolveErr, errSharedLibraryNotFound) {
		return "", resolveErr
	}

	if cfg.disableDownload {
		return "", fmt.Errorf("native shim library not found in cache and download is disabled: %s", installDir)
	}

	if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bootstrap cache directory %q: %w", cfg.cacheDir, err)
	}

	lockPath := filepath.Join(cfg.cacheDir, ".locks", fmt.Sprintf("%s-%s.lock", artifact.platform, cfg.version))
	var resolvedPath string
	if err := withProcessFileLock(lockPath, func() error {
		if path, resolveErr := resolveExtractedLibraryPath(installDir, artifact); resolveErr == nil {
			resolvedPath = path
			return nil
		} else if !errors.Is(resolveErr, errSharedLibraryNotFound) {
			return resolveErr
		}

		if err := downloadAndInstallShim(cfg, artifact, installDir); err != nil {
			return err
		}

		path, resolveErr := resolveExtractedLibraryPath(installDir, artifact)
		if resolveErr != nil {
			return fmt.Errorf("bootstrap completed but shared library could not be resolved: %w", resolveErr)
		}
		resolvedPath = path
		return nil
	}); err != nil {
		return "", err
	}

	return resolvedPath, nil
}

// InitializeWithBootstrap resolves a shim path via bootstrap, sets it on the
// runtime, and initializes the native library.
func InitializeWithBootstrap(opts ...BootstrapOption) error {
	path, err := EnsureSharedLibrary(opts...)
	if err != nil {
		return err
	}

	mu.Lock()
	alreadyInitialized := initialized
	currentPath := libPath
	mu.Unlock()

	if alreadyInitialized && currentPath != path {
		return fmt.Errorf("cannot change library path after the runtime is initialized")
	}

	if !alreadyInitialized {
		if err := SetSharedLibraryPath(path); err != nil {
			// Another goroutine may have initialized after we checked state.
			mu.Lock()
			alreadyInitialized = initialized
			currentPath = libPath
			mu.Unlock()
			if !(alreadyInitialized && currentPath == path) {
				return err
			}
		}
	}

	return Initialize()
}

func resolveBootstrapConfig(opts ...BootstrapOption) (bootstrapConfig, error) {
	disableDownload, err := parseBootstrapBoolEnv("PURETORCH_DISABLE_DOWNLOAD")
	if err != nil {
		return bootstrapConfig{}, err
	}

	cfg := bootstrapConfig{
		libraryPath:     strings.TrimSpace(os.Getenv("PURETORCH_LIB_PATH")),
		cacheDir:        strings.TrimSpace(os.Getenv("PURETORCH_CACHE_DIR")),
		version:         strings.TrimSpace(os.Getenv("PURETORCH_VERSION")),
		disableDownload: disableDownload,
		baseURL:         defaultBootstrapBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
	}

	if cfg.version == "" {
		cfg.version = DefaultShimVersion
	}
	if cfg.cacheDir == "" {
		cfg.cacheDir = defaultBootstrapCacheDir()
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return bootstrapConfig{}, err
		}
	}

	version, err := normalizeShimVersion(cfg.version)
	if err != nil {
		return bootstrapConfig{}, err
	}
	cfg.version = version

	if cfg.cacheDir == "" {
		return bootstrapConfig{}, fmt.Errorf("bootstrap cache directory is empty")
	}
	cfg.cacheDir = filepath.Clean(cfg.cacheDir)

	if strings.TrimSpace(cfg.baseURL) == "" {
		return bootstrapConfig{}, fmt.Errorf("bootstrap base URL is empty")
	}
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	if cfg.httpClient == nil {
		return bootstrapConfig{}, fmt.Errorf("bootstrap HTTP client cannot be nil")
	}

	return cfg, nil
}

// normalizeShimVersion validates the requested version with semver and gates
// it on the minimum supported shim version.
func normalizeShimVersion(version string) (string, error) {
	parsed, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return "", fmt.Errorf("invalid shim version %q: %w", version, err)
	}
	if parsed.Prerelease() != "" || parsed.Metadata() != "" {
		return "", fmt.Errorf("shim version %q must be a plain x.y.z release", version)
	}

	minimum := semver.MustParse(minimumShimVersion)
	if parsed.LessThan(minimum) {
		return "", fmt.Errorf("shim version %s is older than the minimum supported %s", parsed, minimum)
	}

	return parsed.String(), nil
}

func resolveShimArtifact(goos, goarch string) (shimArtifact, error) {
	switch goos {
	case "darwin":
		switch goarch {
		case "arm64":
			return shimArtifact{
				platform:       "osx-arm64",
				primaryLibrary: "libtorchbind.dylib",
				libraryGlob:    "libtorchbind*.dylib",
			}, nil
		case "amd64":
			return shimArtifact{
				platform:       "osx-x86_64",
				primaryLibrary: "libtorchbind.dylib",
				libraryGlob:    "libtorchbind*.dylib",
			}, nil
		}
	case "linux":
		switch goarch {
		case "arm64":
			return shimArtifact{
				platform:       "linux-aarch64",
				primaryLibrary: "libtorchbind.so",
				libraryGlob:    "libtorchbind.so*",
			}, nil
		case "amd64":
			return shimArtifact{
				platform:       "linux-x64",
				primaryLibrary: "libtorchbind.so",
				libraryGlob:    "libtorchbind.so*",
			}, nil
		}
	case "windows":
		switch goarch {
		case "amd64":
			return shimArtifact{
				platform:       "win-x64",
				primaryLibrary: "torchbind.dll",
				libraryGlob:    "torchbind*.dll",
			}, nil
		}
	}

	return shimArtifact{}, fmt.Errorf("unsupported platform for native shim bootstrap: GOOS=%s GOARCH=%s", goos, goarch)
}

func (a shimArtifact) archiveName(version string) string {
	return fmt.Sprintf("libtorchbind-%s-%s", a.platform, version)
}

func (a shimArtifact) archiveFilename(version string) string {
	return a.archiveName(version) + ".zip"
}

func (a shimArtifact) downloadURL(baseURL, version string) string {
	return fmt.Sprintf("%s/v%s/%s", strings.TrimRight(baseURL, "/"), version, a.archiveFilename(version))
}

func downloadAndInstallShim(cfg bootstrapConfig, artifact shimArtifact, installDir string) error {
	url := artifact.downloadURL(cfg.baseURL, cfg.version)
	archivePath, checksum, err := downloadShimArchive(cfg, url)
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(archivePath)
	}()

	if cfg.expectedSHA256 != "" && checksum != cfg.expectedSHA256 {
		return fmt.Errorf("download checksum mismatch: expected %s, got %s", cfg.expectedSHA256, checksum)
	}

	stagingRoot := installDir + fmt.Sprintf(".staging-%d", time.Now().UnixNano())
	if err := os.RemoveAll(stagingRoot); err != nil {
		return fmt.Errorf("failed to clean bootstrap staging directory %q: %w", stagingRoot, err)
	}
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create bootstrap staging directory %q: %w", stagingRoot, err)
	}
	defer func() {
		_ = os.RemoveAll(stagingRoot)
	}()

	if err := extractZIPArchive(archivePath, stagingRoot); err != nil {
		return err
	}

	extractedInstallDir := filepath.Join(stagingRoot, artifact.archiveName(cfg.version))
	info, statErr := os.Stat(extractedInstallDir)
	if statErr != nil {
		if !errors.Is(statErr, os.ErrNotExist) {
			return fmt.Errorf("failed to inspect extracted install directory %q: %w", extractedInstallDir, statErr)
		}
		extractedInstallDir = stagingRoot
	} else if !info.IsDir() {
		return fmt.Errorf("extracted install path is not a directory: %q", extractedInstallDir)
	}

	if _, err := resolveExtractedLibraryPath(extractedInstallDir, artifact); err != nil {
		if errors.Is(err, errSharedLibraryNotFound) {
			return fmt.Errorf("downloaded archive did not contain expected shared library in %q", filepath.Join(extractedInstallDir, "lib"))
		}
		return err
	}

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("failed to remove previous shim install at %q: %w", installDir, err)
	}

	if extractedInstallDir == stagingRoot {
		if err := os.Rename(stagingRoot, installDir); err != nil {
			return fmt.Errorf("failed to install native shim to %q: %w", installDir, err)
		}
		return nil
	}

	if err := os.Rename(extractedInstallDir, installDir); err != nil {
		return fmt.Errorf("failed to install native shim to %q: %w", installDir, err)
	}
	return nil
}

func downloadShimArchive(cfg bootstrapConfig, url string) (archivePath string, checksum string, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create download request for %q: %w", url, err)
	}

	resp, err := cfg.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to download native shim archive from %q: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		snippet = []byte(strings.TrimSpace(string(snippet)))
		if len(snippet) > 0 {
			return "", "", fmt.Errorf("failed to download native shim archive from %q: HTTP %d: %s", url, resp.StatusCode, string(snippet))
		}
		return "", "", fmt.Errorf("failed to download native shim archive from %q: HTTP %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create cache directory %q: %w", cfg.cacheDir, err)
	}

	tmpFile, err := os.CreateTemp(cfg.cacheDir, "libtorchbind-*.archive")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temporary archive file: %w", err)
	}
	tmpPath := tmpFile.Name()
	archivePath = tmpPath
	success := false
	defer func() {
		closeErr := tmpFile.Close()
		if err == nil && closeErr != nil {
			err = closeErr
		}
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body)
	if copyErr != nil {
		err = fmt.Errorf("failed to write native shim archive to %q: %w", archivePath, copyErr)
		return "", "", err
	}
	if written == 0 {
		err = fmt.Errorf("downloaded native shim archive is empty")
		return "", "", err
	}

	checksum = hex.EncodeToString(hasher.Sum(nil))
	success = true
	return archivePath, checksum, nil
}

func extractZIPArchive(archivePath, destinationDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open ZIP archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	regularFiles := 0
	for _, entry := range reader.File {
		targetPath, err := secureArchiveJoin(destinationDir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", targetPath, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory for %q: %w", targetPath, err)
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open ZIP entry %q: %w", entry.Name, err)
		}

		mode := entry.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			_ = rc.Close()
			return fmt.Errorf("failed to create extracted file %q: %w", targetPath, err)
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return fmt.Errorf("failed to extract ZIP entry %q: %w", entry.Name, err)
		}

		if err := outFile.Close(); err != nil {
			_ = rc.Close()
			return fmt.Errorf("failed to close extracted file %q: %w", targetPath, err)
		}
		if err := rc.Close(); err != nil {
			return fmt.Errorf("failed to close ZIP entry %q: %w", entry.Name, err)
		}

		regularFiles++
	}

	if regularFiles == 0 {
		return fmt.Errorf("archive %q did not contain regular files", archivePath)
	}

	return nil
}

func resolveExtractedLibraryPath(installDir string, artifact shimArtifact) (string, error) {
	libDir := filepath.Join(installDir, "lib")

	var invalidCandidates []error
	trackCandidateError := func(path string, validationErr error) {
		if validationErr == nil {
			return
		}
		if errors.Is(validationErr, os.ErrNotExist) {
			return
		}
		invalidCandidates = append(invalidCandidates, fmt.Errorf("%s: %w", path, validationErr))
	}

	primaryPath := filepath.Join(libDir, artifact.primaryLibrary)
	if path, err := validateLibraryFile(primaryPath); err == nil {
		return path, nil
	} else {
		trackCandidateError(primaryPath, err)
	}

	matches, err := filepath.Glob(filepath.Join(libDir, artifact.libraryGlob))
	if err != nil {
		return "", fmt.Errorf("failed to resolve native shim library path: %w", err)
	}
	sort.Strings(matches)
	for _, match := range matches {
		path, err := validateLibraryFile(match)
		if err == nil {
			return path, nil
		}
		trackCandidateError(match, err)
	}

	if len(invalidCandidates) > 0 {
		return "", fmt.Errorf("found native shim library candidates in %q but none are valid: %w", libDir, errors.Join(invalidCandidates...))
	}

	return "", errSharedLibraryNotFound
}

func validateLibraryFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("library path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat library file %q: %w", absPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("library path points to a directory: %q", absPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("library file is empty: %q", absPath)
	}

	return absPath, nil
}

func withProcessFileLock(lockPath string, fn func() error) (err error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory for %q: %w", lockPath, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file %q: %w", lockPath, err)
	}

	if err := lockFile(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to acquire lock %q: %w", lockPath, err)
	}

	defer func() {
		unlockErr := unlockFile(file)
		closeErr := file.Close()
		err = errors.Join(err, unlockErr, closeErr)
	}()

	if fn == nil {
		return nil
	}
	return fn()
}

func secureArchiveJoin(baseDir, archivePath string) (string, error) {
	archivePath = strings.TrimSpace(archivePath)
	if archivePath == "" {
		return "", fmt.Errorf("invalid empty archive entry path")
	}

	normalized := strings.ReplaceAll(archivePath, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("invalid absolute archive entry path %q", archivePath)
	}
	if len(normalized) >= 2 && ((normalized[0] >= 'A' && normalized[0] <= 'Z') || (normalized[0] >= 'a' && normalized[0] <= 'z')) && normalized[1] == ':' {
		return "", fmt.Errorf("invalid archive entry path with drive letter %q", archivePath)
	}

	cleaned := filepath.Clean(normalized)
	if cleaned == "." {
		return "", fmt.Errorf("invalid archive entry path %q", archivePath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", archivePath)
	}

	targetPath := filepath.Join(baseDir, cleaned)
	relPath, err := filepath.Rel(baseDir, targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve archive path %q: %w", archivePath, err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", archivePath)
	}

	return targetPath, nil
}

func defaultBootstrapCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "pure-torch", "libtorchbind")
	}

	fallback := filepath.Join(os.TempDir(), "pure-torch", "libtorchbind")
	bootstrapCacheFallbackWarnOnce.Do(func() {
		if err != nil {
			log.Printf("WARNING: failed to resolve user cache directory (%v); using temporary native shim cache at %q. Set PURETORCH_CACHE_DIR for a persistent cache.", err, fallback)
			return
		}
		log.Printf("WARNING: user cache directory is empty; using temporary native shim cache at %q. Set PURETORCH_CACHE_DIR for a persistent cache.", fallback)
	})
	return fallback
}

func parseBootstrapBoolEnv(name string) (bool, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return false, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err == nil {
		return parsed, nil
	}

	switch strings.ToLower(value) {
	case "1", "yes", "y", "on":
		return true, nil
	case "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value for %s: %q (expected true/false, 1/0, yes/no, on/off)", name, value)
	}
}
