package embedding

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("chest pain", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: ids=%d attn=%d types=%d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsID {
		t.Errorf("expected CLS %d, got %d", clsID, ids[0])
	}
	if ids[3] != sepID {
		t.Errorf("expected SEP %d after two words, got %d", sepID, ids[3])
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("unexpected attention mask %v", attn)
	}
	again, _, _ := tok.Tokenize("chest pain", 10)
	if !reflect.DeepEqual(ids, again) {
		t.Error("tokenization should be deterministic")
	}
}

func TestFrame_Truncates(t *testing.T) {
	ids, attn, _ := frame([]int64{5, 6, 7, 8, 9}, 4)
	want := []int64{clsID, 5, 6, sepID}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids: got %v, want %v", ids, want)
	}
	for i, m := range attn {
		if m != 1 {
			t.Errorf("attn[%d] = %d, want 1", i, m)
		}
	}
}

func testVocab() map[string]int64 {
	return map[string]int64{
		"[PAD]": 0, "[UNK]": 100, "[CLS]": 101, "[SEP]": 102,
		"skin": 2000, "rash": 2001, "derma": 2002, "##to": 2003, "##logist": 2004, ",": 2005, "in": 2006,
	}
}

func TestWordPieceTokenizer_Tokenize(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab())
	ids, attn, _ := tok.Tokenize("Skin rash, Dermatologist in Lahore", 12)
	want := []int64{clsID, 2000, 2001, 2005, 2002, 2003, 2004, 2006, unkID, sepID, padID, padID}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids: got %v, want %v", ids, want)
	}
	if attn[9] != 1 || attn[10] != 0 {
		t.Errorf("unexpected attention mask %v", attn)
	}
}

func TestLoadWordPieceTokenizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte("[PAD]\r\nskin\r\nrash\r\n"), 0644); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadWordPieceTokenizer(path)
	if err != nil {
		t.Fatal(err)
	}
	if tok.vocab["skin"] != 1 || tok.vocab["rash"] != 2 {
		t.Errorf("vocab ids: %v", tok.vocab)
	}
	if _, err := LoadWordPieceTokenizer(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("missing vocab should fail")
	}
}

func TestTerms(t *testing.T) {
	got := Terms("Speciality: Cardiology. Keywords: heart, chest-pain")
	want := []string{"speciality", "cardiology", "keywords", "heart", "chest", "pain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms: got %v, want %v", got, want)
	}
	if len(Terms("  \t ")) != 0 {
		t.Error("whitespace should yield no terms")
	}
}

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		1, 2,
		3, 4,
		100, 100,
	}
	got := meanPool(hidden, []int64{1, 1, 0}, 2)
	want := []float32{2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("meanPool: got %v, want %v", got, want)
	}
	if zero := meanPool(hidden, []int64{0, 0, 0}, 2); zero[0] != 0 || zero[1] != 0 {
		t.Errorf("no attended tokens should pool to zero, got %v", zero)
	}
}
