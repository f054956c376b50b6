package bio

import (
	"strings"
	"testing"
)

func TestFormatCoNLL(t *testing.T) {
	got := FormatCoNLL([]TaggedToken{{"John", "B-PER"}, {"Smith", "I-PER"}, {",", "O"}})
	want := "John B-PER\nSmith I-PER\n, O"
	if got != want {
		t.Errorf("FormatCoNLL = %q, want %q", got, want)
	}

	if FormatCoNLL(nil) != "" {
		t.Error("empty token list should format to empty string")
	}
}

func TestParseCoNLL(t *testing.T) {
	input := "# generated file\nJohn B-PER\nSmith I-PER\n\nGoogle B-ORG\n\n\n2019 B-DATE\n"
	sentences, err := ParseCoNLL(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCoNLL: %v", err)
	}
	if len(sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d", len(sentences))
	}
	if len(sentences[0].Tokens) != 2 || sentences[0].Tags[1] != "I-PER" {
		t.Errorf("sentence 0 parsed wrong: %+v", sentences[0])
	}
	if sentences[1].Tokens[0] != "Google" {
		t.Errorf("sentence 1 parsed wrong: %+v", sentences[1])
	}
}

func TestParseCoNLLRejectsBareToken(t *testing.T) {
	if _, err := ParseCoNLL(strings.NewReader("token-without-tag\n")); err == nil {
		t.Fatal("line without a tag should be rejected")
	}
}

func TestParseCoNLLRoundTrip(t *testing.T) {
	sentences := []Sentence{
		{Tokens: []string{"John", "Smith"}, Tags: []string{"B-PER", "I-PER"}},
		{Tokens: []string{"Python"}, Tags: []string{"B-SKILL"}},
	}

	var sb strings.Builder
	if err := WriteSentences(&sb, sentences); err != nil {
		t.Fatalf("WriteSentences: %v", err)
	}

	parsed, err := ParseCoNLL(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ParseCoNLL: %v", err)
	}
	if len(parsed) != 2 || parsed[0].Tokens[1] != "Smith" || parsed[1].Tags[0] != "B-SKILL" {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
}

func TestSplitSentences(t *testing.T) {
	var sentences []Sentence
	for i := 0; i < 10; i++ {
		sentences = append(sentences, Sentence{Tokens: []string{"tok"}, Tags: []string{"O"}})
	}

	train, val := SplitSentences(sentences, 0.2, 42)
	if len(train) != 8 || len(val) != 2 {
		t.Fatalf("expected 8/2 split, got %d/%d", len(train), len(val))
	}

	// Same seed reproduces the same split.
	train2, val2 := SplitSentences(sentences, 0.2, 42)
	if len(train2) != len(train) || len(val2) != len(val) {
		t.Error("split with same seed should be reproducible")
	}
}

func TestSplitSentencesSmallCorpus(t *testing.T) {
	sentences := []Sentence{
		{Tokens: []string{"a"}, Tags: []string{"O"}},
		{Tokens: []string{"b"}, Tags: []string{"O"}},
	}
	train, val := SplitSentences(sentences, 0.1, 1)
	if len(val) != 1 || len(train) != 1 {
		t.Fatalf("tiny corpus should still get one validation sentence, got %d/%d", len(train), len(val))
	}
}
