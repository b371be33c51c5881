package nn

import (
	"fmt"

	"github.com/tensorware/pure-torch/torch"
)

type embeddingConfig struct {
	paddingIdx      int64
	scaleGradByFreq bool
	sparse          bool
	mode            torch.EmbeddingBagMode
}

// EmbeddingOption customizes an embedding layer.
type EmbeddingOption func(*embeddingConfig)

// WithPaddingIdx marks one row as the padding row, which stays zero and
// receives no gradient.
func WithPaddingIdx(idx int64) EmbeddingOption {
	return func(c *embeddingConfig) { c.paddingIdx = idx }
}

// WithScaleGradByFreq scales gradients by the inverse word frequency in
// the batch.
func WithScaleGradByFreq(enabled bool) EmbeddingOption {
	return func(c *embeddingConfig) { c.scaleGradByFreq = enabled }
}

// WithSparse makes the weight gradient sparse.
func WithSparse(enabled bool) EmbeddingOption {
	return func(c *embeddingConfig) { c.sparse = enabled }
}

// WithBagMode selects the reduction an EmbeddingBag applies per bag.
func WithBagMode(mode torch.EmbeddingBagMode) EmbeddingOption {
	return func(c *embeddingConfig) { c.mode = mode }
}

func validateEmbeddingDims(numEmbeddings, embeddingDim int64) error {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got num=%d dim=%d", numEmbeddings, embeddingDim)
	}
	return nil
}

// Embedding maps integer indices to dense rows of a learned table.
type Embedding struct {
	weight *torch.Tensor
	cfg    embeddingConfig
}

// NewEmbedding builds an embedding table with rows drawn from N(0, 1).
func NewEmbedding(numEmbeddings, embeddingDim int64, opts ...EmbeddingOption) (*Embedding, error) {
	if err := validateEmbeddingDims(numEmbeddings, embeddingDim); err != nil {
		return nil, err
	}

	cfg := embeddingConfig{paddingIdx: -1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.paddingIdx >= numEmbeddings {
		return nil, fmt.Errorf("padding index %d out of range for %d embeddings", cfg.paddingIdx, numEmbeddings)
	}

	weight, err := normalTensor(torch.NewShape(numEmbeddings, embeddingDim), 0, 1)
	if err != nil {
		return nil, err
	}
	return &Embedding{weight: weight, cfg: cfg}, nil
}

func (e *Embedding) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.Embedding(input, e.weight, e.cfg.paddingIdx, e.cfg.scaleGradByFreq, e.cfg.sparse)
}

func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{{Name: "weight", Tensor: e.weight}}
}

func (e *Embedding) Close() error {
	return closeParameters(e.Parameters())
}

// EmbeddingBag looks up embedding rows and reduces each bag to a single
// row (sum, mean or max).
//
// Known limitation: the native runtime fails on int32 indices combined
// with 2-D input. The native error is surfaced unchanged; convert the
// indices to int64 to avoid it.
type EmbeddingBag struct {
	weight *torch.Tensor
	cfg    embeddingConfig
}

// NewEmbeddingBag builds an embedding-bag table with rows drawn from
// N(0, 1). The default reduction is Sum.
func NewEmbeddingBag(numEmbeddings, embeddingDim int64, opts ...EmbeddingOption) (*EmbeddingBag, error) {
	if err := validateEmbeddingDims(numEmbeddings, embeddingDim); err != nil {
		return nil, err
	}

	cfg := embeddingConfig{paddingIdx: -1, mode: torch.EmbeddingBagSum}
	for _, opt := range opts {
		opt(&cfg)
	}

	weight, err := normalTensor(torch.NewShape(numEmbeddings, embeddingDim), 0, 1)
	if err != nil {
		return nil, err
	}
	return &EmbeddingBag{weight: weight, cfg: cfg}, nil
}

// Forward reduces a 2-D index tensor where each row is one bag.
func (e *EmbeddingBag) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.EmbeddingBag(input, e.weight, nil, e.cfg.mode, e.cfg.sparse)
}

// ForwardWithOffsets reduces a flat 1-D index tensor split into bags at
// the given offsets.
func (e *EmbeddingBag) ForwardWithOffsets(input, offsets *torch.Tensor) (*torch.Tensor, error) {
	if offsets == nil {
		return nil, fmt.Errorf("offsets tensor is required; use Forward for 2-D input")
	}
	return torch.EmbeddingBag(input, e.weight, offsets, e.cfg.mode, e.cfg.sparse)
}

func (e *EmbeddingBag) Parameters() []*Parameter {
	return []*Parameter{{Name: "weight", Tensor: e.weight}}
}

func (e *EmbeddingBag) Close() error {
	return closeParameters(e.Parameters())
}
