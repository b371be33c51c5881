package torch

import "runtime"

// Backward runs backpropagation from this tensor. The tensor must be a
// scalar or have gradients seeded by the native side.
func (t *Tensor) Backward() error {
	handle, err := t.h()
	if err != nil {
		return err
	}
	n, err := api()
	if err != nil {
		return err
	}

	n.tensorBackward(handle)
	runtime.KeepAlive(t)
	return checkErr(n, "THSTensor_backward")
}

// Grad returns the accumulated gradient of this tensor.
func (t *Tensor) Grad() (*Tensor, error) {
	return t.unaryOp("THSTensor_grad", func(n *nativeAPI, h uintptr) uintptr { return n.tensorGrad(h) })
}

// GradEnabled reports whether gradient recording is globally enabled.
func GradEnabled() (bool, error) {
	n, err := api()
	if err != nil {
		return false, err
	}
	return n.gradEnabled(), nil
}

// SetGradEnabled toggles global gradient recording.
func SetGradEnabled(enabled bool) error {
	n, err := api()
	if err != nil {
		return err
	}
	n.setGradEnabled(enabled)
	return checkErr(n, "THSAutograd_set_grad_enabled")
}

// NoGrad runs fn with gradient recording disabled, restoring the previous
// mode on all exit paths.
func NoGrad(fn func() error) error {
	n, err := api()
	if err != nil {
		return err
	}

	previous := n.gradEnabled()
	n.setGradEnabled(false)
	if err := checkErr(n, "THSAutograd_set_grad_enabled"); err != nil {
		return err
	}
	defer n.setGradEnabled(previous)

	if fn == nil {
		return nil
	}
	return fn()
}
