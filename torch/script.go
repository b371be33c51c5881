package torch

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"
)

// ScriptModule owns a native handle to a compiled script module loaded from
// a serialized archive. Ownership discipline matches Tensor: Close releases
// exactly once, finalizer as a safety net.
type ScriptModule struct {
	mu     sync.Mutex
	handle uintptr
	path   string
}

// NamedParameter pairs a parameter name with its tensor.
type NamedParameter struct {
	Name   string
	Tensor *Tensor
}

// LoadScriptModule deserializes a script module from path onto device.
func LoadScriptModule(path string, device Device) (*ScriptModule, error) {
	if path == "" {
		return nil, fmt.Errorf("script module path cannot be empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("script module file not accessible: %w", err)
	}

	n, err := api()
	if err != nil {
		return nil, err
	}

	pathBytes, pathPtr := GoToCstring(path)
	handle := n.jitLoad(pathPtr, int32(device.Kind), int32(device.Index))
	runtime.KeepAlive(pathBytes)
	if handle == 0 {
		return nil, lastError(n, "THSJIT_load")
	}

	m := &ScriptModule{handle: handle, path: path}
	runtime.SetFinalizer(m, func(m *ScriptModule) {
		_ = m.Close()
	})
	return m, nil
}

// Path returns the archive path this module was loaded from.
func (m *ScriptModule) Path() string {
	return m.path
}

func (m *ScriptModule) h() (uintptr, error) {
	if m == nil {
		return 0, ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == 0 {
		return 0, ErrClosed
	}
	return m.handle, nil
}

// Forward runs the module's forward method on the inputs and returns the
// single output tensor.
func (m *ScriptModule) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("forward requires at least one input tensor")
	}

	handle, err := m.h()
	if err != nil {
		return nil, err
	}

	handles := make([]uintptr, len(inputs))
	for i, input := range inputs {
		h, err := input.h()
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		handles[i] = h
	}

	n, err := api()
	if err != nil {
		return nil, err
	}

	// #nosec G103 -- Required for CGO-free FFI; the handle slice is kept alive for the call.
	result := n.jitModuleForward(handle, uintptr(unsafe.Pointer(unsafe.SliceData(handles))), int64(len(handles)))
	runtime.KeepAlive(handles)
	runtime.KeepAlive(m)
	for _, input := range inputs {
		runtime.KeepAlive(input)
	}
	if result == 0 {
		return nil, lastError(n, "THSJIT_Module_forward")
	}
	return newTensor(result), nil
}

// Eval puts the module in inference mode.
func (m *ScriptModule) Eval() error {
	return m.setTraining(false)
}

// Train puts the module in training mode.
func (m *ScriptModule) Train() error {
	return m.setTraining(true)
}

func (m *ScriptModule) setTraining(mode bool) error {
	handle, err := m.h()
	if err != nil {
		return err
	}
	n, err := api()
	if err != nil {
		return err
	}
	n.jitModuleTrain(handle, mode)
	runtime.KeepAlive(m)
	return checkErr(n, "THSJIT_Module_train")
}

// To moves the module's parameters and buffers to device.
func (m *ScriptModule) To(device Device) error {
	handle, err := m.h()
	if err != nil {
		return err
	}
	n, err := api()
	if err != nil {
		return err
	}
	n.jitModuleToDevice(handle, int32(device.Kind), int32(device.Index))
	runtime.KeepAlive(m)
	return checkErr(n, "THSJIT_Module_to_device")
}

// NamedParameters enumerates the module's parameters. Each returned tensor
// is an owned wrapper the caller must Close.
func (m *ScriptModule) NamedParameters() ([]NamedParameter, error) {
	handle, err := m.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	count := n.jitModuleNumParams(handle)
	if err := checkErr(n, "THSJIT_Module_num_parameters"); err != nil {
		return nil, err
	}

	params := make([]NamedParameter, 0, count)
	for i := int64(0); i < count; i++ {
		namePtr := n.jitModuleParamName(handle, i)
		if namePtr == 0 {
			closeNamedParameters(params)
			return nil, lastError(n, "THSJIT_Module_parameter_name")
		}
		name := CstringToGo(namePtr)

		tensorHandle := n.jitModuleParam(handle, i)
		if tensorHandle == 0 {
			closeNamedParameters(params)
			return nil, lastError(n, "THSJIT_Module_parameter")
		}

		params = append(params, NamedParameter{Name: name, Tensor: newTensor(tensorHandle)})
	}
	runtime.KeepAlive(m)
	return params, nil
}

func closeNamedParameters(params []NamedParameter) {
	for _, p := range params {
		_ = p.Tensor.Close()
	}
}

// Close releases the native module. Idempotent.
func (m *ScriptModule) Close() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	handle := m.handle
	m.handle = 0
	m.mu.Unlock()

	if handle == 0 {
		return nil
	}
	runtime.SetFinalizer(m, nil)

	n, err := api()
	if err != nil {
		return nil
	}
	n.jitModuleDispose(handle)
	return nil
}
