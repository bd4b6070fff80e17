//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/medbot/pkg/utils"
)

// ONNXEmbedder runs a sentence-transformers model exported to ONNX. It requires CGO and the
// onnxruntime shared library. The model takes input_ids, attention_mask and token_type_ids of
// shape [1, maxTokens] and returns last_hidden_state of shape [1, maxTokens, dimensions],
// which is mean-pooled over the attended tokens.
type ONNXEmbedder struct {
	model      string
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer

	mu      sync.Mutex
	session *ort.AdvancedSession
	ids     *ort.Tensor[int64]
	mask    *ort.Tensor[int64]
	types   *ort.Tensor[int64]
	hidden  *ort.Tensor[float32]
}

// NewONNXEmbedder loads the model at modelPath. A vocab.txt next to the model enables
// WordPiece tokenization. model is the name recorded with persisted indexes.
func NewONNXEmbedder(model, modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("onnx embedder: model path is required")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx embedder: %w", err)
	}
	if dimensions <= 0 || maxTokens < 2 {
		return nil, fmt.Errorf("onnx embedder: invalid dimensions %d or max tokens %d", dimensions, maxTokens)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	var tokenizer Tokenizer = &SimpleTokenizer{}
	if wp, err := LoadWordPieceTokenizer(filepath.Join(filepath.Dir(modelPath), "vocab.txt")); err == nil {
		tokenizer = wp
	}

	e := &ONNXEmbedder{model: model, dimensions: dimensions, maxTokens: maxTokens, tokenizer: tokenizer}
	if err := e.allocate(modelPath); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *ONNXEmbedder) allocate(modelPath string) error {
	inputShape := ort.NewShape(1, int64(e.maxTokens))
	var err error
	if e.ids, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.mask, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.types, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if e.hidden, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.maxTokens), int64(e.dimensions))); err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	e.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{e.ids, e.mask, e.types},
		[]ort.ArbitraryTensor{e.hidden},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return nil
}

// Embed returns the normalised, mean-pooled embedding for text. Inference is serialised on
// the shared tensors.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("onnx embedder is closed")
	}
	copy(e.ids.GetData(), ids)
	copy(e.mask.GetData(), mask)
	copy(e.types.GetData(), types)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := meanPool(e.hidden.GetData(), mask, e.dimensions)
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text; the session is fixed to a batch of one.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the configured model name.
func (e *ONNXEmbedder) Model() string {
	return e.model
}

// Close destroys the session and tensors. It is safe to call more than once.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.ids, e.mask, e.types} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if e.hidden != nil {
		_ = e.hidden.Destroy()
	}
	e.ids, e.mask, e.types, e.hidden = nil, nil, nil, nil
	return err
}
