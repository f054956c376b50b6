package bio

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strings"
)

// FormatCoNLL renders one record's tagged tokens as CoNLL text: one
// "token<space>tag" pair per line, no trailing blank line. Record separation
// is the caller's concern (the output log inserts one blank line between
// blocks).
func FormatCoNLL(tokens []TaggedToken) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Text)
		b.WriteByte(' ')
		b.WriteString(t.Tag)
	}
	return b.String()
}

// Sentence is one parsed CoNLL record.
type Sentence struct {
	Tokens []string
	Tags   []string
}

// ParseCoNLL reads CoNLL text: blank lines separate sentences, '#' lines are
// comments, and each remaining line is a whitespace-separated token/tag pair
// (the tag is the last field, so extra middle columns are tolerated).
func ParseCoNLL(r io.Reader) ([]Sentence, error) {
	var sentences []Sentence
	var cur Sentence

	flush := func() {
		if len(cur.Tokens) > 0 {
			sentences = append(sentences, cur)
			cur = Sentence{}
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("parse conll: line %d: expected token and tag, got %q", lineNo, line)
		}
		cur.Tokens = append(cur.Tokens, fields[0])
		cur.Tags = append(cur.Tags, fields[len(fields)-1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse conll: %w", err)
	}
	flush()

	return sentences, nil
}

// SplitSentences shuffles sentences with the given seed and splits off
// valRatio of them for validation. The seed makes the split reproducible so
// train and validation sets stay disjoint across reruns.
func SplitSentences(sentences []Sentence, valRatio float64, seed int64) (train, val []Sentence) {
	shuffled := make([]Sentence, len(sentences))
	copy(shuffled, sentences)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nVal := int(float64(len(shuffled)) * valRatio)
	if nVal < 1 && len(shuffled) > 1 && valRatio > 0 {
		nVal = 1
	}
	return shuffled[nVal:], shuffled[:nVal]
}

// WriteSentences writes sentences back out as CoNLL with blank-line
// separators.
func WriteSentences(w io.Writer, sentences []Sentence) error {
	bw := bufio.NewWriter(w)
	for i, s := range sentences {
		if i > 0 {
			if _, err := bw.WriteString("\n\n"); err != nil {
				return err
			}
		}
		for j := range s.Tokens {
			if j > 0 {
				if err := bw.WriteByte('\n'); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(bw, "%s %s", s.Tokens[j], s.Tags[j]); err != nil {
				return err
			}
		}
	}
	if len(sentences) > 0 {
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
