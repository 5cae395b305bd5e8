// Package textindex implements the BM25 full-text index with trigram
// acceleration (spec component C5): an inverted index over posting
// lists of (point_id, term_frequency), a per-collection document length
// table, and a trigram index used both for substring (like/ilike)
// candidate generation and for short BM25 queries.
//
// Grounded on the teacher's pkg/search/fulltext_index.go: the inverted
// index / doc-length-table shape and the BM25 formula are kept; the
// ad-hoc prefix-matching scoring hack is dropped (not part of the BM25
// contract this engine promises), replaced by unicode NFKC tokenization,
// a real trigram accelerator, and tombstone-based deletion so WAL replay
// stays idempotent.
package textindex

import (
	"sync"
)

// Matcher is the filter-admission predicate consulted during a scan
// (mirrors pkg/hnsw.Matcher so pkg/query can share one adapter shape
// across both index types).
type Matcher interface {
	Matches(id uint64) bool
}

type matchAll struct{}

func (matchAll) Matches(uint64) bool { return true }

// Result is one ranked hit, BM25-score descending.
type Result struct {
	ID    uint64
	Score float64
}

// posting is one document's entry in a term's posting list.
type posting struct {
	termFreq int
}

// Index is the text index for one collection's configured text fields.
// Safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	tok *Tokenizer

	postings   map[string]map[uint64]posting // term -> docID -> posting
	docLengths map[uint64]int                // docID -> token count
	normalized map[uint64]string             // docID -> lowercased/NFKC text, for trigram rebuild
	dead       map[uint64]bool               // tombstoned ids, collapsed at Compact

	totalLength int64
	liveCount   int64

	trigrams *trigramIndex
}

// New builds an empty text index. A nil stopWords uses the built-in
// default list.
func New(stopWords map[string]struct{}) *Index {
	return &Index{
		tok:        NewTokenizer(stopWords),
		postings:   make(map[string]map[uint64]posting),
		docLengths: make(map[uint64]int),
		normalized: make(map[uint64]string),
		dead:       make(map[uint64]bool),
		trigrams:   newTrigramIndex(),
	}
}

// Upsert (re-)indexes id's text fields, per spec.md §4.4 "Updates":
// re-tokenizes, updates posting lists, the trigram index, and the
// length table. An existing entry for id is fully replaced.
func (idx *Index) Upsert(id uint64, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)

	tokens := idx.tok.Tokenize(text)
	if len(tokens) == 0 {
		return
	}

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for term, freq := range tf {
		docs, ok := idx.postings[term]
		if !ok {
			docs = make(map[uint64]posting)
			idx.postings[term] = docs
		}
		docs[id] = posting{termFreq: freq}
	}

	idx.docLengths[id] = len(tokens)
	idx.totalLength += int64(len(tokens))
	idx.liveCount++
	delete(idx.dead, id)

	normalized := normalizeForTrigrams(text)
	idx.normalized[id] = normalized
	idx.trigrams.add(id, normalized)
}

// Delete tombstones id (spec.md §4.4: "Deletion marks the document dead;
// posting lists carry tombstones collapsed at next compaction"). The
// document stops contributing to scoring and avgdl immediately, but its
// posting-list entries are only physically removed by Compact.
func (idx *Index) Delete(id uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.docLengths[id]; !ok || idx.dead[id] {
		return
	}
	idx.dead[id] = true
	idx.liveCount--
	idx.totalLength -= int64(idx.docLengths[id])
}

// removeLocked fully erases id's index entries, used by Upsert to
// replace an existing document outright (not a tombstone: the caller
// immediately re-adds fresh entries).
func (idx *Index) removeLocked(id uint64) {
	length, ok := idx.docLengths[id]
	if !ok {
		return
	}
	wasDead := idx.dead[id]

	if text, ok := idx.normalized[id]; ok {
		idx.trigrams.remove(id, text)
	}
	for term, docs := range idx.postings {
		if _, ok := docs[id]; ok {
			delete(docs, id)
			if len(docs) == 0 {
				delete(idx.postings, term)
			}
		}
	}
	delete(idx.docLengths, id)
	delete(idx.normalized, id)
	delete(idx.dead, id)

	if !wasDead {
		idx.liveCount--
		idx.totalLength -= int64(length)
	}
}

func (idx *Index) avgDocLength() float64 {
	if idx.liveCount == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(idx.liveCount)
}

// Count returns the number of live (non-tombstoned) documents.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.liveCount)
}

// Compact physically drops tombstoned documents from every posting
// list and the trigram index, reclaiming their space.
func (idx *Index) Compact() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, dead := range idx.dead {
		if !dead {
			continue
		}
		if text, ok := idx.normalized[id]; ok {
			idx.trigrams.remove(id, text)
		}
		for term, docs := range idx.postings {
			if _, ok := docs[id]; ok {
				delete(docs, id)
				if len(docs) == 0 {
					delete(idx.postings, term)
				}
			}
		}
		delete(idx.docLengths, id)
		delete(idx.normalized, id)
		delete(idx.dead, id)
	}
}
