package torch

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeShimVersion(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		expectErr string
	}{
		{name: "plain release", input: "2.5.1", want: "2.5.1"},
		{name: "v prefix", input: "v2.5.1", want: "2.5.1"},
		{name: "whitespace", input: "  2.4.0 ", want: "2.4.0"},
		{name: "below minimum", input: "2.0.1", expectErr: "older than the minimum supported"},
		{name: "prerelease rejected", input: "2.5.1-rc1", expectErr: "plain x.y.z release"},
		{name: "build metadata rejected", input: "2.5.1+cu121", expectErr: "plain x.y.z release"},
		{name: "garbage", input: "latest", expectErr: "invalid shim version"},
		{name: "empty", input: "", expectErr: "invalid shim version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeShimVersion(tt.input)
			if tt.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got version %q", tt.expectErr, got)
				}
				if !strings.Contains(err.Error(), tt.expectErr) {
					t.Fatalf("expected error containing %q, got %q", tt.expectErr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("normalizeShimVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveShimArtifact(t *testing.T) {
	tests := []struct {
		goos, goarch string
		platform     string
		primary      string
		expectErr    bool
	}{
		{goos: "linux", goarch: "amd64", platform: "linux-x64", primary: "libtorchbind.so"},
		{goos: "linux", goarch: "arm64", platform: "linux-aarch64", primary: "libtorchbind.so"},
		{goos: "darwin", goarch: "arm64", platform: "osx-arm64", primary: "libtorchbind.dylib"},
		{goos: "darwin", goarch: "amd64", platform: "osx-x86_64", primary: "libtorchbind.dylib"},
		{goos: "windows", goarch: "amd64", platform: "win-x64", primary: "torchbind.dll"},
		{goos: "plan9", goarch: "amd64", expectErr: true},
		{goos: "windows", goarch: "arm", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			artifact, err := resolveShimArtifact(tt.goos, tt.goarch)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if artifact.platform != tt.platform {
				t.Errorf("platform = %q, want %q", artifact.platform, tt.platform)
			}
			if artifact.primaryLibrary != tt.primary {
				t.Errorf("primaryLibrary = %q, want %q", artifact.primaryLibrary, tt.primary)
			}
		})
	}
}

func TestShimArtifactDownloadURL(t *testing.T) {
	artifact, err := resolveShimArtifact("linux", "amd64")
	if err != nil {
		t.Fatalf("resolveShimArtifact failed: %v", err)
	}

	url := artifact.downloadURL("https://example.com/releases/download/", "2.5.1")
	want := "https://example.com/releases/download/v2.5.1/libtorchbind-linux-x64-2.5.1.zip"
	if url != want {
		t.Errorf("downloadURL = %q, want %q", url, want)
	}
}

func TestSecureArchiveJoin(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name      string
		entry     string
		expectErr bool
	}{
		{name: "simple file", entry: "lib/libtorchbind.so"},
		{name: "nested file", entry: "libtorchbind-linux-x64-2.5.1/lib/libtorchbind.so"},
		{name: "empty", entry: "", expectErr: true},
		{name: "absolute", entry: "/etc/passwd", expectErr: true},
		{name: "parent escape", entry: "../escape", expectErr: true},
		{name: "hidden parent escape", entry: "lib/../../escape", expectErr: true},
		{name: "windows drive", entry: `C:\windows\system32`, expectErr: true},
		{name: "dot only", entry: ".", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := secureArchiveJoin(base, tt.entry)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got path %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasPrefix(got, base) {
				t.Errorf("joined path %q escapes base %q", got, base)
			}
		})
	}
}

func TestWithExpectedSHA256Validation(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	tests := []struct {
		name      string
		checksum  string
		expectErr bool
	}{
		{name: "valid lowercase", checksum: valid},
		{name: "uppercase accepted via normalization", checksum: strings.ToUpper(valid)},
		{name: "too short", checksum: "abcd", expectErr: true},
		{name: "non-hex", checksum: strings.Repeat("zz", 32), expectErr: true},
		{name: "empty", checksum: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := bootstrapConfig{}
			err := WithExpectedSHA256(tt.checksum)(&cfg)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.expectedSHA256 != strings.ToLower(tt.checksum) {
				t.Errorf("stored checksum = %q", cfg.expectedSHA256)
			}
		})
	}
}

func TestEnsureSharedLibraryExplicitPath(t *testing.T) {
	dir := t.TempDir()
	libFile := filepath.Join(dir, "libtorchbind.so")
	if err := os.WriteFile(libFile, []byte("not really a shared object"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	path, err := EnsureSharedLibrary(WithLibraryPath(libFile), WithCacheDir(t.TempDir()))
	if err != nil {
		t.Fatalf("EnsureSharedLibrary failed: %v", err)
	}
	if path != libFile {
		t.Errorf("resolved path = %q, want %q", path, libFile)
	}
}

func TestEnsureSharedLibraryExplicitPathMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.so")
	_, err := EnsureSharedLibrary(WithLibraryPath(missing), WithCacheDir(t.TempDir()))
	if err == nil {
		t.Fatal("expected error for missing explicit library path")
	}
}

func TestEnsureSharedLibraryDownloadDisabled(t *testing.T) {
	_, err := EnsureSharedLibrary(
		WithCacheDir(t.TempDir()),
		WithDisableDownload(true),
	)
	if err == nil {
		t.Fatal("expected error when library is absent and download is disabled")
	}
	if !strings.Contains(err.Error(), "download is disabled") {
		t.Errorf("error should mention disabled download, got %q", err.Error())
	}
}

// buildShimArchive builds an in-memory release ZIP laid out like a published
// shim archive: <archiveName>/lib/<library>.
func buildShimArchive(t *testing.T, artifact shimArtifact, version string) []byte {
	t.Helper()

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create(fmt.Sprintf("%s/lib/%s", artifact.archiveName(version), artifact.primaryLibrary))
	if err != nil {
		t.Fatalf("failed to create zip entry: %v", err)
	}
	if _, err := entry.Write([]byte("fake shared library payload")); err != nil {
		t.Fatalf("failed to write zip entry: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to finalize zip: %v", err)
	}
	return buf.Bytes()
}

func TestEnsureSharedLibraryDownloadsAndCaches(t *testing.T) {
	artifact, err := resolveShimArtifact("linux", "amd64")
	if err != nil {
		t.Skipf("unsupported platform for bootstrap test: %v", err)
	}
	version := DefaultShimVersion
	archive := buildShimArchive(t, artifact, version)

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		wantPath := fmt.Sprintf("/v%s/%s", version, artifact.archiveFilename(version))
		if r.URL.Path != wantPath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	opts := []BootstrapOption{
		WithCacheDir(cacheDir),
		withBootstrapBaseURL(server.URL),
		withBootstrapHTTPClient(server.Client()),
	}

	cfg, err := resolveBootstrapConfig(opts...)
	if err != nil {
		t.Fatalf("resolveBootstrapConfig failed: %v", err)
	}
	cfg.goos = "linux"
	cfg.goarch = "amd64"

	installDir := filepath.Join(cacheDir, artifact.archiveName(version))
	if err := downloadAndInstallShim(cfg, artifact, installDir); err != nil {
		t.Fatalf("downloadAndInstallShim failed: %v", err)
	}

	resolved, err := resolveExtractedLibraryPath(installDir, artifact)
	if err != nil {
		t.Fatalf("resolveExtractedLibraryPath failed: %v", err)
	}
	if filepath.Base(resolved) != artifact.primaryLibrary {
		t.Errorf("resolved library = %q, want basename %q", resolved, artifact.primaryLibrary)
	}

	// Second resolution must come from cache without another request.
	before := requests
	if _, err := resolveExtractedLibraryPath(installDir, artifact); err != nil {
		t.Fatalf("cached resolution failed: %v", err)
	}
	if requests != before {
		t.Errorf("cached resolution made %d extra requests", requests-before)
	}
}

func TestDownloadChecksumMismatch(t *testing.T) {
	artifact, err := resolveShimArtifact("linux", "amd64")
	if err != nil {
		t.Skipf("unsupported platform for bootstrap test: %v", err)
	}
	version := DefaultShimVersion
	archive := buildShimArchive(t, artifact, version)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	cfg, err := resolveBootstrapConfig(
		WithCacheDir(cacheDir),
		withBootstrapBaseURL(server.URL),
		withBootstrapHTTPClient(server.Client()),
		WithExpectedSHA256(strings.Repeat("00", 32)),
	)
	if err != nil {
		t.Fatalf("resolveBootstrapConfig failed: %v", err)
	}

	installDir := filepath.Join(cacheDir, artifact.archiveName(version))
	err = downloadAndInstallShim(cfg, artifact, installDir)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("error should mention checksum mismatch, got %q", err.Error())
	}
}

func TestParseBootstrapBoolEnv(t *testing.T) {
	tests := []struct {
		value     string
		want      bool
		expectErr bool
	}{
		{value: "", want: false},
		{value: "true", want: true},
		{value: "1", want: true},
		{value: "yes", want: true},
		{value: "on", want: true},
		{value: "false", want: false},
		{value: "0", want: false},
		{value: "off", want: false},
		{value: "banana", expectErr: true},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("PURETORCH_TEST_BOOL", tt.value)
			got, err := parseBootstrapBoolEnv("PURETORCH_TEST_BOOL")
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseBootstrapBoolEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
