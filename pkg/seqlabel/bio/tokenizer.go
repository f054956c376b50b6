// Package bio converts raw record text plus model-reported entity mentions
// into BIO-tagged token sequences and reads/writes the CoNLL text format.
package bio

import (
	"unicode"
)

// Token is a tokenizer output with its byte offsets into the source text.
// Offsets are what let entity spans be mapped back onto tokens.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenize splits text into whitespace/punctuation-aware tokens, preserving
// byte offsets. The rules, in order:
//
//   - whitespace always separates tokens and is never emitted;
//   - runs of letters and digits form a token;
//   - '-' stays inside a token only between two letters ("full-stack");
//     between digits it is its own token ("2020-2023" -> 2020, -, 2023);
//   - '.' and apostrophe stay inside between two alphanumerics ("Node.js", "O'Brien");
//   - '+' and '#' attach to an immediately preceding alphanumeric run
//     ("C++", "F#");
//   - any other non-space rune is a single-rune token.
//
// The same text always produces the same tokens; the encoder and all tag
// counting depend on that determinism.
func Tokenize(text string) []Token {
	runes := []rune(text)
	offsets := runeByteOffsets(text)

	var tokens []Token
	start := -1 // rune index where the current token began, -1 if none

	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, Token{
				Text:  string(runes[start:end]),
				Start: offsets[start],
				End:   offsets[end],
			})
			start = -1
		}
	}

	isWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush(i)

		case isWord(r):
			if start < 0 {
				start = i
			}

		case (r == '-' || r == '.' || r == '\'') && start >= 0 && i+1 < len(runes):
			prev, next := runes[i-1], runes[i+1]
			joins := false
			if r == '-' {
				joins = unicode.IsLetter(prev) && unicode.IsLetter(next)
			} else {
				joins = isWord(prev) && isWord(next)
			}
			if joins {
				continue // stays inside the current token
			}
			flush(i)
			tokens = append(tokens, Token{Text: string(r), Start: offsets[i], End: offsets[i+1]})

		case (r == '+' || r == '#') && start >= 0:
			// Trailing run of '+'/'#' sticks to the word: C++, C#.
			continue

		default:
			flush(i)
			tokens = append(tokens, Token{Text: string(r), Start: offsets[i], End: offsets[i+1]})
		}
	}
	flush(len(runes))

	return tokens
}

// runeByteOffsets returns the byte offset of each rune plus a final entry
// equal to len(text), so offsets[i:j] brackets runes[i:j].
func runeByteOffsets(text string) []int {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))
	return offsets
}
