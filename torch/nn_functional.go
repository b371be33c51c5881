package torch

import (
	"fmt"
	"runtime"
)

// Functional neural-network entry points. Each function is the single
// canonical call shape for its native op; ergonomic argument forms (scalar
// kernels, "same" padding) are normalized by the nn package before they
// reach this file.

// pairSlice copies a per-dimension pair onto the heap so its address stays
// stable for the duration of a native call.
func pairSlice(p [2]int64) Shape {
	return Shape{p[0], p[1]}
}

func handleOrZero(t *Tensor) (uintptr, error) {
	if t == nil {
		return 0, nil
	}
	return t.h()
}

// Conv1d applies a 1-D convolution. bias may be nil.
func Conv1d(input, weight, bias *Tensor, stride, padding, dilation, groups int64) (*Tensor, error) {
	if stride <= 0 || dilation <= 0 || groups <= 0 {
		return nil, fmt.Errorf("conv1d: stride, dilation and groups must be positive (stride=%d dilation=%d groups=%d)", stride, dilation, groups)
	}
	if padding < 0 {
		return nil, fmt.Errorf("conv1d: padding cannot be negative, got %d", padding)
	}

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	w, err := weight.h()
	if err != nil {
		return nil, err
	}
	b, err := handleOrZero(bias)
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := n.nnConv1d(in, w, b, stride, padding, dilation, groups)
	runtime.KeepAlive(input)
	runtime.KeepAlive(weight)
	runtime.KeepAlive(bias)
	if result == 0 {
		return nil, lastError(n, "THSNN_conv1d")
	}
	return newTensor(result), nil
}

// Conv2d applies a 2-D convolution. bias may be nil. stride, padding and
// dilation are per-dimension (H, W) values.
func Conv2d(input, weight, bias *Tensor, stride, padding, dilation [2]int64, groups int64) (*Tensor, error) {
	for _, v := range stride {
		if v <= 0 {
			return nil, fmt.Errorf("conv2d: stride must be positive, got %v", stride)
		}
	}
	for _, v := range dilation {
		if v <= 0 {
			return nil, fmt.Errorf("conv2d: dilation must be positive, got %v", dilation)
		}
	}
	for _, v := range padding {
		if v < 0 {
			return nil, fmt.Errorf("conv2d: padding cannot be negative, got %v", padding)
		}
	}
	if groups <= 0 {
		return nil, fmt.Errorf("conv2d: groups must be positive, got %d", groups)
	}

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	w, err := weight.h()
	if err != nil {
		return nil, err
	}
	b, err := handleOrZero(bias)
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	strideArg := pairSlice(stride)
	paddingArg := pairSlice(padding)
	dilationArg := pairSlice(dilation)
	result := n.nnConv2d(in, w, b, shapePtr(strideArg), shapePtr(paddingArg), shapePtr(dilationArg), groups)
	runtime.KeepAlive(strideArg)
	runtime.KeepAlive(paddingArg)
	runtime.KeepAlive(dilationArg)
	runtime.KeepAlive(input)
	runtime.KeepAlive(weight)
	runtime.KeepAlive(bias)
	if result == 0 {
		return nil, lastError(n, "THSNN_conv2d")
	}
	return newTensor(result), nil
}

// Linear applies input × weightᵀ + bias. bias may be nil.
func Linear(input, weight, bias *Tensor) (*Tensor, error) {
	in, err := input.h()
	if err != nil {
		return nil, err
	}
	w, err := weight.h()
	if err != nil {
		return nil, err
	}
	b, err := handleOrZero(bias)
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := n.nnLinear(in, w, b)
	runtime.KeepAlive(input)
	runtime.KeepAlive(weight)
	runtime.KeepAlive(bias)
	if result == 0 {
		return nil, lastError(n, "THSNN_linear")
	}
	return newTensor(result), nil
}

// MaxPool2d applies 2-D max pooling.
func MaxPool2d(input *Tensor, kernel, stride, padding, dilation [2]int64, ceilMode bool) (*Tensor, error) {
	for _, v := range kernel {
		if v <= 0 {
			return nil, fmt.Errorf("max_pool2d: kernel must be positive, got %v", kernel)
		}
	}

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	kernelArg := pairSlice(kernel)
	strideArg := pairSlice(stride)
	paddingArg := pairSlice(padding)
	dilationArg := pairSlice(dilation)
	result := n.nnMaxPool2d(in, shapePtr(kernelArg), shapePtr(strideArg), shapePtr(paddingArg), shapePtr(dilationArg), ceilMode)
	runtime.KeepAlive(kernelArg)
	runtime.KeepAlive(strideArg)
	runtime.KeepAlive(paddingArg)
	runtime.KeepAlive(dilationArg)
	runtime.KeepAlive(input)
	if result == 0 {
		return nil, lastError(n, "THSNN_max_pool2d")
	}
	return newTensor(result), nil
}

// AvgPool2d applies 2-D average pooling.
func AvgPool2d(input *Tensor, kernel, stride, padding [2]int64, ceilMode, countIncludePad bool) (*Tensor, error) {
	for _, v := range kernel {
		if v <= 0 {
			return nil, fmt.Errorf("avg_pool2d: kernel must be positive, got %v", kernel)
		}
	}

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	kernelArg := pairSlice(kernel)
	strideArg := pairSlice(stride)
	paddingArg := pairSlice(padding)
	result := n.nnAvgPool2d(in, shapePtr(kernelArg), shapePtr(strideArg), shapePtr(paddingArg), ceilMode, countIncludePad)
	runtime.KeepAlive(kernelArg)
	runtime.KeepAlive(strideArg)
	runtime.KeepAlive(paddingArg)
	runtime.KeepAlive(input)
	if result == 0 {
		return nil, lastError(n, "THSNN_avg_pool2d")
	}
	return newTensor(result), nil
}

// AdaptiveAvgPool2d pools to a fixed output size regardless of input size.
func AdaptiveAvgPool2d(input *Tensor, outputSize [2]int64) (*Tensor, error) {
	for _, v := range outputSize {
		if v <= 0 {
			return nil, fmt.Errorf("adaptive_avg_pool2d: output size must be positive, got %v", outputSize)
		}
	}

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	outputArg := pairSlice(outputSize)
	result := n.nnAdaptiveAvgPool2d(in, shapePtr(outputArg))
	runtime.KeepAlive(outputArg)
	runtime.KeepAlive(input)
	if result == 0 {
		return nil, lastError(n, "THSNN_adaptive_avg_pool2d")
	}
	return newTensor(result), nil
}

// BatchNorm applies batch normalization. weight, bias, runningMean and
// runningVar may each be nil where the native op permits.
func BatchNorm(input, weight, bias, runningMean, runningVar *Tensor, training bool, momentum, eps float64) (*Tensor, error) {
	if eps <= 0 {
		return nil, fmt.Errorf("batch_norm: eps must be positive, got %g", eps)
	}

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	w, err := handleOrZero(weight)
	if err != nil {
		return nil, err
	}
	b, err := handleOrZero(bias)
	if err != nil {
		return nil, err
	}
	rm, err := handleOrZero(runningMean)
	if err != nil {
		return nil, err
	}
	rv, err := handleOrZero(runningVar)
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := n.nnBatchNorm(in, w, b, rm, rv, training, momentum, eps)
	runtime.KeepAlive(input)
	runtime.KeepAlive(weight)
	runtime.KeepAlive(bias)
	runtime.KeepAlive(runningMean)
	runtime.KeepAlive(runningVar)
	if result == 0 {
		return nil, lastError(n, "THSNN_batch_norm")
	}
	return newTensor(result), nil
}

// LayerNorm normalizes over the trailing normalizedShape dimensions.
func LayerNorm(input *Tensor, normalizedShape Shape, weight, bias *Tensor, eps float64) (*Tensor, error) {
	if len(normalizedShape) == 0 {
		return nil, fmt.Errorf("layer_norm: normalized shape cannot be empty")
	}
	if eps <= 0 {
		return nil, fmt.Errorf("layer_norm: eps must be positive, got %g", eps)
	}

	shapeCopy := cloneShape(normalizedShape)

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	w, err := handleOrZero(weight)
	if err != nil {
		return nil, err
	}
	b, err := handleOrZero(bias)
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := n.nnLayerNorm(in, shapePtr(shapeCopy), int64(len(shapeCopy)), w, b, eps)
	runtime.KeepAlive(shapeCopy)
	runtime.KeepAlive(input)
	runtime.KeepAlive(weight)
	runtime.KeepAlive(bias)
	if result == 0 {
		return nil, lastError(n, "THSNN_layer_norm")
	}
	return newTensor(result), nil
}

// Embedding looks up rows of weight by index.
func Embedding(input, weight *Tensor, paddingIdx int64, scaleGradByFreq, sparse bool) (*Tensor, error) {
	in, err := input.h()
	if err != nil {
		return nil, err
	}
	w, err := weight.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := n.nnEmbedding(in, w, paddingIdx, scaleGradByFreq, sparse)
	runtime.KeepAlive(input)
	runtime.KeepAlive(weight)
	if result == 0 {
		return nil, lastError(n, "THSNN_embedding")
	}
	return newTensor(result), nil
}

// EmbeddingBag looks up and reduces bags of embeddings in one call.
// offsets may be nil for 2-D input, where each row is one bag.
//
// Known limitation: the native runtime fails on int32 indices combined with
// 2-D input. The native error is surfaced unchanged; convert indices to
// int64 to avoid it.
func EmbeddingBag(input, weight, offsets *Tensor, mode EmbeddingBagMode, sparse bool) (*Tensor, error) {
	if mode != EmbeddingBagSum && mode != EmbeddingBagMean && mode != EmbeddingBagMax {
		return nil, fmt.Errorf("embedding_bag: unknown reduction mode %d", mode)
	}

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	w, err := weight.h()
	if err != nil {
		return nil, err
	}
	off, err := handleOrZero(offsets)
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := n.nnEmbeddingBag(in, w, off, int32(mode), sparse)
	runtime.KeepAlive(input)
	runtime.KeepAlive(weight)
	runtime.KeepAlive(offsets)
	if result == 0 {
		return nil, lastError(n, "THSNN_embedding_bag")
	}
	return newTensor(result), nil
}

// Dropout zeroes elements with probability p during training.
func Dropout(input *Tensor, p float64, training bool) (*Tensor, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("dropout: probability must be in [0, 1], got %g", p)
	}

	in, err := input.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := n.nnDropout(in, p, training)
	runtime.KeepAlive(input)
	if result == 0 {
		return nil, lastError(n, "THSNN_dropout")
	}
	return newTensor(result), nil
}
