package torch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScriptModuleEmptyPath(t *testing.T) {
	_, err := LoadScriptModule("", CPU)
	if err == nil {
		t.Fatal("Expected error for empty path")
	}
}

func TestLoadScriptModuleMissingFile(t *testing.T) {
	_, err := LoadScriptModule(filepath.Join(t.TempDir(), "missing.pt"), CPU)
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadScriptModuleRequiresInitialization(t *testing.T) {
	if IsInitialized() {
		t.Skip("Skipping: runtime already initialized")
	}

	path := filepath.Join(t.TempDir(), "model.pt")
	if err := os.WriteFile(path, []byte("not a real archive"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := LoadScriptModule(path, CPU)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestScriptModuleClosed(t *testing.T) {
	m := &ScriptModule{}

	if _, err := m.Forward(&Tensor{handle: 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Forward on closed module: expected ErrClosed, got %v", err)
	}
	if err := m.Eval(); !errors.Is(err, ErrClosed) {
		t.Errorf("Eval on closed module: expected ErrClosed, got %v", err)
	}
	if err := m.To(CPU); !errors.Is(err, ErrClosed) {
		t.Errorf("To on closed module: expected ErrClosed, got %v", err)
	}
	if _, err := m.NamedParameters(); !errors.Is(err, ErrClosed) {
		t.Errorf("NamedParameters on closed module: expected ErrClosed, got %v", err)
	}
}

func TestScriptModuleCloseIdempotent(t *testing.T) {
	m := &ScriptModule{}
	if err := m.Close(); err != nil {
		t.Fatalf("First Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	var nilModule *ScriptModule
	if err := nilModule.Close(); err != nil {
		t.Fatalf("Close on nil module failed: %v", err)
	}
}

func TestScriptModuleForwardNoInputs(t *testing.T) {
	m := &ScriptModule{handle: 1}
	defer func() { m.handle = 0 }()

	if _, err := m.Forward(); err == nil {
		t.Fatal("Expected error for forward without inputs")
	}
}

// Integration test: needs a native shim plus a serialized module to load.
func TestScriptModuleRoundTrip(t *testing.T) {
	requireNativeLibrary(t)

	modelPath := os.Getenv("PURETORCH_TEST_SCRIPT_MODULE")
	if modelPath == "" {
		t.Skip("Skipping integration test: PURETORCH_TEST_SCRIPT_MODULE not set")
	}

	m, err := LoadScriptModule(modelPath, CPU)
	if err != nil {
		t.Fatalf("LoadScriptModule failed: %v", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.Eval(); err != nil {
		t.Fatalf("Eval failed: %v", err)
	}

	input, err := Rand(NewShape(1, 3, 224, 224))
	if err != nil {
		t.Fatalf("Rand failed: %v", err)
	}
	defer func() { _ = input.Close() }()

	output, err := m.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	defer func() { _ = output.Close() }()

	if output.handle == 0 {
		t.Fatal("Forward returned a zero handle")
	}

	params, err := m.NamedParameters()
	if err != nil {
		t.Fatalf("NamedParameters failed: %v", err)
	}
	defer closeNamedParameters(params)

	for _, p := range params {
		if p.Name == "" {
			t.Error("Parameter with empty name")
		}
	}
}
