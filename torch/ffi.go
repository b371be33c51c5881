package torch

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// nativeAPI holds the registered native entry points.
//
// Pointer arguments cross the boundary as uintptr; the caller is
// responsible for keeping the backing Go memory alive (and pinned where
// the native side reads it) for the duration of the call.
//
// Handle-returning entry points signal failure with a zero handle; the
// caller must then drain the native last-error state. Void entry points
// leave their failure in the last-error state, which the caller polls.
type nativeAPI struct {
	// Runtime
	getAndResetLastErr func() uintptr
	version            func() uintptr
	manualSeed         func(seed int64)
	cudaIsAvailable    func() bool
	cudaDeviceCount    func() int32

	// Tensor lifecycle and factories
	tensorDispose func(handle uintptr)
	tensorNew     func(data uintptr, sizes uintptr, ndim int64, dtype int32) uintptr
	tensorEmpty   func(sizes uintptr, ndim int64, dtype int32, deviceKind int32, deviceIndex int32, requiresGrad bool) uintptr
	tensorZeros   func(sizes uintptr, ndim int64, dtype int32, deviceKind int32, deviceIndex int32, requiresGrad bool) uintptr
	tensorOnes    func(sizes uintptr, ndim int64, dtype int32, deviceKind int32, deviceIndex int32, requiresGrad bool) uintptr
	tensorFull    func(sizes uintptr, ndim int64, value float64, dtype int32, deviceKind int32, deviceIndex int32) uintptr
	tensorRand    func(generator uintptr, sizes uintptr, ndim int64, dtype int32, deviceKind int32, deviceIndex int32, requiresGrad bool) uintptr
	tensorRandn   func(generator uintptr, sizes uintptr, ndim int64, dtype int32, deviceKind int32, deviceIndex int32, requiresGrad bool) uintptr
	tensorArange  func(start float64, end float64, step float64, dtype int32, deviceKind int32, deviceIndex int32) uintptr

	// Tensor metadata
	tensorNdim         func(handle uintptr) int64
	tensorSize         func(handle uintptr, dim int64) int64
	tensorNumel        func(handle uintptr) int64
	tensorType         func(handle uintptr) int32
	tensorDeviceType   func(handle uintptr) int32
	tensorDeviceIndex  func(handle uintptr) int32
	tensorRequiresGrad func(handle uintptr) bool
	tensorSetRequiresGrad func(handle uintptr, requiresGrad bool)
	tensorData         func(handle uintptr) uintptr

	// Tensor ops
	tensorAdd        func(left uintptr, right uintptr) uintptr
	tensorSub        func(left uintptr, right uintptr) uintptr
	tensorMul        func(left uintptr, right uintptr) uintptr
	tensorDiv        func(left uintptr, right uintptr) uintptr
	tensorAddScalar  func(handle uintptr, value float64) uintptr
	tensorMulScalar  func(handle uintptr, value float64) uintptr
	tensorMatmul     func(left uintptr, right uintptr) uintptr
	tensorReshape    func(handle uintptr, sizes uintptr, ndim int64) uintptr
	tensorPermute    func(handle uintptr, dims uintptr, ndim int64) uintptr
	tensorTranspose  func(handle uintptr, dim0 int64, dim1 int64) uintptr
	tensorFlatten    func(handle uintptr, startDim int64, endDim int64) uintptr
	tensorSqueeze    func(handle uintptr, dim int64) uintptr
	tensorUnsqueeze  func(handle uintptr, dim int64) uintptr
	tensorSum        func(handle uintptr) uintptr
	tensorMean       func(handle uintptr) uintptr
	tensorArgmax     func(handle uintptr, dim int64, keepDim bool) uintptr
	tensorSoftmax    func(handle uintptr, dim int64) uintptr
	tensorRelu       func(handle uintptr) uintptr
	tensorClone      func(handle uintptr) uintptr
	tensorDetach     func(handle uintptr) uintptr
	tensorContiguous func(handle uintptr) uintptr
	tensorToDevice   func(handle uintptr, deviceKind int32, deviceIndex int32) uintptr
	tensorToType     func(handle uintptr, dtype int32) uintptr
	tensorEqual      func(left uintptr, right uintptr) bool
	tensorAllClose   func(left uintptr, right uintptr, rtol float64, atol float64) bool
	tensorItemFloat  func(handle uintptr) float64
	tensorItemInt    func(handle uintptr) int64

	// Autograd
	tensorBackward func(handle uintptr)
	tensorGrad     func(handle uintptr) uintptr
	gradEnabled    func() bool
	setGradEnabled func(enabled bool)

	// Generators
	generatorNew         func(seed int64, deviceKind int32, deviceIndex int32) uintptr
	generatorDispose     func(handle uintptr)
	generatorManualSeed  func(handle uintptr, seed int64)
	generatorInitialSeed func(handle uintptr) int64

	// NN functional entry points. For the 2-D ops, kernel/stride/padding/
	// dilation cross as pointers to length-2 int64 arrays.
	nnConv1d            func(input uintptr, weight uintptr, bias uintptr, stride int64, padding int64, dilation int64, groups int64) uintptr
	nnConv2d            func(input uintptr, weight uintptr, bias uintptr, strides uintptr, paddings uintptr, dilations uintptr, groups int64) uintptr
	nnLinear            func(input uintptr, weight uintptr, bias uintptr) uintptr
	nnMaxPool2d         func(input uintptr, kernel uintptr, strides uintptr, paddings uintptr, dilations uintptr, ceilMode bool) uintptr
	nnAvgPool2d         func(input uintptr, kernel uintptr, strides uintptr, paddings uintptr, ceilMode bool, countIncludePad bool) uintptr
	nnAdaptiveAvgPool2d func(input uintptr, outputSizes uintptr) uintptr
	nnBatchNorm         func(input uintptr, weight uintptr, bias uintptr, runningMean uintptr, runningVar uintptr, training bool, momentum float64, eps float64) uintptr
	nnLayerNorm         func(input uintptr, normalizedShape uintptr, shapeLen int64, weight uintptr, bias uintptr, eps float64) uintptr
	nnEmbedding         func(input uintptr, weight uintptr, paddingIdx int64, scaleGradByFreq bool, sparse bool) uintptr
	nnEmbeddingBag      func(input uintptr, weight uintptr, offsets uintptr, mode int32, sparse bool) uintptr
	nnDropout           func(input uintptr, p float64, training bool) uintptr

	// TorchScript
	jitLoad             func(path uintptr, deviceKind int32, deviceIndex int32) uintptr
	jitModuleDispose    func(handle uintptr)
	jitModuleForward    func(handle uintptr, tensors uintptr, count int64) uintptr
	jitModuleTrain      func(handle uintptr, mode bool)
	jitModuleToDevice   func(handle uintptr, deviceKind int32, deviceIndex int32)
	jitModuleNumParams  func(handle uintptr) int64
	jitModuleParam      func(handle uintptr, index int64) uintptr
	jitModuleParamName  func(handle uintptr, index int64) uintptr
}

// registerNative resolves every native entry point from the loaded shim.
// A single missing symbol fails the whole registration: a partially bound
// API is worse than a load error.
func registerNative(library uintptr) (*nativeAPI, error) {
	n := &nativeAPI{}

	bindings := []struct {
		name string
		fn   any
	}{
		{"THSTorch_get_and_reset_last_err", &n.getAndResetLastErr},
		{"THSTorch_get_version", &n.version},
		{"THSTorch_manual_seed", &n.manualSeed},
		{"THSTorchCuda_is_available", &n.cudaIsAvailable},
		{"THSTorchCuda_device_count", &n.cudaDeviceCount},

		{"THSTensor_dispose", &n.tensorDispose},
		{"THSTensor_new", &n.tensorNew},
		{"THSTensor_empty", &n.tensorEmpty},
		{"THSTensor_zeros", &n.tensorZeros},
		{"THSTensor_ones", &n.tensorOnes},
		{"THSTensor_full", &n.tensorFull},
		{"THSTensor_rand", &n.tensorRand},
		{"THSTensor_randn", &n.tensorRandn},
		{"THSTensor_arange", &n.tensorArange},

		{"THSTensor_ndimension", &n.tensorNdim},
		{"THSTensor_size", &n.tensorSize},
		{"THSTensor_numel", &n.tensorNumel},
		{"THSTensor_type", &n.tensorType},
		{"THSTensor_device_type", &n.tensorDeviceType},
		{"THSTensor_device_index", &n.tensorDeviceIndex},
		{"THSTensor_requires_grad", &n.tensorRequiresGrad},
		{"THSTensor_set_requires_grad", &n.tensorSetRequiresGrad},
		{"THSTensor_data", &n.tensorData},

		{"THSTensor_add", &n.tensorAdd},
		{"THSTensor_sub", &n.tensorSub},
		{"THSTensor_mul", &n.tensorMul},
		{"THSTensor_div", &n.tensorDiv},
		{"THSTensor_add_scalar", &n.tensorAddScalar},
		{"THSTensor_mul_scalar", &n.tensorMulScalar},
		{"THSTensor_matmul", &n.tensorMatmul},
		{"THSTensor_reshape", &n.tensorReshape},
		{"THSTensor_permute", &n.tensorPermute},
		{"THSTensor_transpose", &n.tensorTranspose},
		{"THSTensor_flatten", &n.tensorFlatten},
		{"THSTensor_squeeze", &n.tensorSqueeze},
		{"THSTensor_unsqueeze", &n.tensorUnsqueeze},
		{"THSTensor_sum", &n.tensorSum},
		{"THSTensor_mean", &n.tensorMean},
		{"THSTensor_argmax", &n.tensorArgmax},
		{"THSTensor_softmax", &n.tensorSoftmax},
		{"THSTensor_relu", &n.tensorRelu},
		{"THSTensor_clone", &n.tensorClone},
		{"THSTensor_detach", &n.tensorDetach},
		{"THSTensor_contiguous", &n.tensorContiguous},
		{"THSTensor_to_device", &n.tensorToDevice},
		{"THSTensor_to_type", &n.tensorToType},
		{"THSTensor_equal", &n.tensorEqual},
		{"THSTensor_allclose", &n.tensorAllClose},
		{"THSTensor_item_float64", &n.tensorItemFloat},
		{"THSTensor_item_int64", &n.tensorItemInt},

		{"THSTensor_backward", &n.tensorBackward},
		{"THSTensor_grad", &n.tensorGrad},
		{"THSAutograd_is_grad_enabled", &n.gradEnabled},
		{"THSAutograd_set_grad_enabled", &n.setGradEnabled},

		{"THSGenerator_new", &n.generatorNew},
		{"THSGenerator_dispose", &n.generatorDispose},
		{"THSGenerator_manual_seed", &n.generatorManualSeed},
		{"THSGenerator_initial_seed", &n.generatorInitialSeed},

		{"THSNN_conv1d", &n.nnConv1d},
		{"THSNN_conv2d", &n.nnConv2d},
		{"THSNN_linear", &n.nnLinear},
		{"THSNN_max_pool2d", &n.nnMaxPool2d},
		{"THSNN_avg_pool2d", &n.nnAvgPool2d},
		{"THSNN_adaptive_avg_pool2d", &n.nnAdaptiveAvgPool2d},
		{"THSNN_batch_norm", &n.nnBatchNorm},
		{"THSNN_layer_norm", &n.nnLayerNorm},
		{"THSNN_embedding", &n.nnEmbedding},
		{"THSNN_embedding_bag", &n.nnEmbeddingBag},
		{"THSNN_dropout", &n.nnDropout},

		{"THSJIT_load", &n.jitLoad},
		{"THSJIT_Module_dispose", &n.jitModuleDispose},
		{"THSJIT_Module_forward", &n.jitModuleForward},
		{"THSJIT_Module_train", &n.jitModuleTrain},
		{"THSJIT_Module_to_device", &n.jitModuleToDevice},
		{"THSJIT_Module_num_parameters", &n.jitModuleNumParams},
		{"THSJIT_Module_parameter", &n.jitModuleParam},
		{"THSJIT_Module_parameter_name", &n.jitModuleParamName},
	}

	for _, binding := range bindings {
		sym, err := getSymbol(library, binding.name)
		if err != nil || sym == 0 {
			if err != nil {
				return nil, fmt.Errorf("failed to resolve native symbol %q: %w", binding.name, err)
			}
			return nil, fmt.Errorf("failed to resolve native symbol %q", binding.name)
		}
		purego.RegisterFunc(binding.fn, sym)
	}

	return n, nil
}
