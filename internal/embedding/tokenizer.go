package embedding

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"unicode"
)

// BERT special token ids shared by the uncased vocabularies used with sentence-transformers.
const (
	padID = 0
	unkID = 100
	clsID = 101
	sepID = 102

	maxWordChars = 100
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
// Outputs are padded to maxTokens and always begin with [CLS] and end with [SEP].
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordPieceTokenizer implements uncased BERT tokenization against a vocab.txt file.
type WordPieceTokenizer struct {
	vocab map[string]int64
}

// LoadWordPieceTokenizer reads a vocab.txt file with one token per line; the line number is
// the token id.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		vocab[strings.TrimRight(scanner.Text(), "\r")] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab %s: %w", path, err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab %s is empty", path)
	}
	return &WordPieceTokenizer{vocab: vocab}, nil
}

// NewWordPieceTokenizer builds a tokenizer from an in-memory vocabulary.
func NewWordPieceTokenizer(vocab map[string]int64) *WordPieceTokenizer {
	return &WordPieceTokenizer{vocab: vocab}
}

// Tokenize lower-cases text, splits off punctuation, and greedily matches the longest
// vocabulary pieces of each word. Words that cannot be covered become [UNK].
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	var ids []int64
	for _, word := range basicTokens(text) {
		ids = append(ids, t.wordPieces(word)...)
	}
	return frame(ids, maxTokens)
}

func (t *WordPieceTokenizer) wordPieces(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{unkID}
	}
	var pieces []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		var id int64 = -1
		for ; end > start; end-- {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if v, ok := t.vocab[sub]; ok {
				id = v
				break
			}
		}
		if id < 0 {
			return []int64{unkID}
		}
		pieces = append(pieces, id)
		start = end
	}
	return pieces
}

// basicTokens lower-cases text, splits on whitespace, and makes every punctuation rune its
// own token.
func basicTokens(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// SimpleTokenizer maps each word to a hashed id. It is used when a model ships without a
// vocabulary file; embeddings are then only self-consistent, not faithful to the model.
type SimpleTokenizer struct{}

// Tokenize splits text into lower-cased terms and hashes each into the BERT id range.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	words := Terms(text)
	ids := make([]int64, len(words))
	for i, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		ids[i] = 1000 + int64(h.Sum32()%29000)
	}
	return frame(ids, maxTokens)
}

// frame wraps ids in [CLS] ... [SEP], truncating to fit, and pads to maxTokens.
func frame(ids []int64, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 256
	}
	if len(ids) > maxTokens-2 {
		ids = ids[:maxTokens-2]
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsID
	copy(inputIDs[1:], ids)
	inputIDs[len(ids)+1] = sepID
	for i := 0; i < len(ids)+2; i++ {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// Terms lower-cases text and splits it on anything that is not a letter or digit.
// "Speciality: Cardiology. Keywords: heart" yields [speciality cardiology keywords heart].
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
