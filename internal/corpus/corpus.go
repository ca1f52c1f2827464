package corpus

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Document is one reference text, immutable and shared read-only by all
// clients after startup.
type Document struct {
	Text      string
	SourceTag string
}

// Chunk is a retrieval-sized slice of a document. Seq preserves corpus
// insertion order, which breaks ties between equal-similarity results.
type Chunk struct {
	Text      string
	SourceTag string
	Seq       int
}

// Corpus holds the full knowledge set loaded once at startup.
type Corpus struct {
	docs   []Document
	chunks []Chunk
}

const maxChunkChars = 1200

// Load reads .txt and .md documents from dir. An empty dir string or a
// missing directory yields the built-in default corpus rather than an error.
func Load(dir string) (*Corpus, error) {
	if strings.TrimSpace(dir) == "" {
		return fromDocuments(defaultDocuments()), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("corpus: dir %s missing, using built-in corpus", dir)
			return fromDocuments(defaultDocuments()), nil
		}
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read corpus document %s: %w", entry.Name(), err)
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			continue
		}
		docs = append(docs, Document{
			Text:      text,
			SourceTag: strings.TrimSuffix(entry.Name(), ext),
		})
	}

	if len(docs) == 0 {
		log.Printf("corpus: no documents in %s, using built-in corpus", dir)
		docs = defaultDocuments()
	}
	return fromDocuments(docs), nil
}

func fromDocuments(docs []Document) *Corpus {
	c := &Corpus{docs: docs}
	seq := 0
	for _, doc := range docs {
		for _, text := range splitChunks(doc.Text) {
			c.chunks = append(c.chunks, Chunk{
				Text:      text,
				SourceTag: doc.SourceTag,
				Seq:       seq,
			})
			seq++
		}
	}
	return c
}

// Chunks returns the corpus in insertion order. Callers must not mutate.
func (c *Corpus) Chunks() []Chunk {
	return c.chunks
}

func (c *Corpus) Documents() []Document {
	return c.docs
}

func (c *Corpus) Empty() bool {
	return len(c.chunks) == 0
}

// splitChunks breaks a document on blank lines, merging paragraphs until the
// chunk size cap. Oversized single paragraphs fall back to a hard cut.
func splitChunks(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for len(p) > maxChunkChars {
			flush()
			chunks = append(chunks, strings.TrimSpace(p[:maxChunkChars]))
			p = strings.TrimSpace(p[maxChunkChars:])
		}
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > maxChunkChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()
	return chunks
}
