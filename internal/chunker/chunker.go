// Package chunker splits page text into overlapping windows of words.
package chunker

import (
	"fmt"
	"strings"

	"page-rag/internal/models"
)

// Policy is a chunk size and overlap, both counted in whitespace-delimited words.
type Policy struct {
	Size    int
	Overlap int
}

var DefaultPolicy = Policy{Size: models.DefaultChunkSize, Overlap: models.DefaultChunkOverlap}

// NewPolicy validates size and overlap.
func NewPolicy(size, overlap int) (Policy, error) {
	if size <= 0 {
		return Policy{}, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return Policy{}, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return Policy{Size: size, Overlap: overlap}, nil
}

// Split applies the policy to text.
func (p Policy) Split(text string) []string {
	return Split(text, p.Size, p.Overlap)
}

// Split returns text as windows of size words advancing by size-overlap.
// Text with at most size words comes back unchanged as a single chunk.
// Window words are joined by single spaces and the last window is truncated.
func Split(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if size <= 0 || len(words) <= size {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	step := size - overlap
	chunks := make([]string, 0, (len(words)-overlap+step-1)/step)
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
