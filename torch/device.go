package torch

import "fmt"

// Device identifies a compute device on the native side.
type Device struct {
	Kind  DeviceKind
	Index int
}

// CPU is the default CPU device.
var CPU = Device{Kind: KindCPU}

// CUDA returns the CUDA device with the given ordinal.
func CUDA(index int) Device {
	return Device{Kind: KindCUDA, Index: index}
}

// String renders the device as "cpu" or "cuda:N".
func (d Device) String() string {
	if d.Kind == KindCUDA {
		return fmt.Sprintf("cuda:%d", d.Index)
	}
	return d.Kind.String()
}

// ParseDevice parses "cpu", "cuda" or "cuda:N".
func ParseDevice(raw string) (Device, error) {
	switch {
	case raw == "cpu":
		return CPU, nil
	case raw == "cuda":
		return CUDA(0), nil
	}

	var index int
	if _, err := fmt.Sscanf(raw, "cuda:%d", &index); err == nil && index >= 0 {
		return CUDA(index), nil
	}
	return Device{}, fmt.Errorf("unrecognized device %q (expected cpu, cuda or cuda:N)", raw)
}

// CudaIsAvailable reports whether the native library sees a usable CUDA runtime.
func CudaIsAvailable() (bool, error) {
	n, err := api()
	if err != nil {
		return false, err
	}
	return n.cudaIsAvailable(), nil
}

// CudaDeviceCount returns the number of visible CUDA devices.
func CudaDeviceCount() (int, error) {
	n, err := api()
	if err != nil {
		return 0, err
	}
	return int(n.cudaDeviceCount()), nil
}
