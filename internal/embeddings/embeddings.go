// Package embeddings generates fixed-dimension text embeddings for
// assessment similarity search. Vectors come from feature hashing the
// assessment text, so they are deterministic and need no external
// model.
package embeddings

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// Dim is the embedding dimensionality, matching the pgvector column.
const Dim = 64

// Result carries one embedding or the error that prevented it.
type Result struct {
	Content   string
	Embedding []float32
	Error     error
}

// work is one queued embedding request.
type work struct {
	content string
	result  chan<- Result
}

// Service generates and caches embeddings behind a worker pool.
type Service struct {
	numWorkers int
	workQueue  chan work
	cache      sync.Map
	wg         sync.WaitGroup
}

// NewService starts a pool of numWorkers embedding workers.
func NewService(numWorkers int) *Service {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	s := &Service{
		numWorkers: numWorkers,
		workQueue:  make(chan work, 100),
	}
	s.startWorkers()
	return s
}

func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for w := range s.workQueue {
				if cached, ok := s.cache.Load(w.content); ok {
					if emb, valid := cached.([]float32); valid {
						w.result <- Result{Content: w.content, Embedding: emb}
						continue
					}
				}

				emb := Embed(w.content)
				s.cache.Store(w.content, emb)
				w.result <- Result{Content: w.content, Embedding: emb}
			}
		}()
	}
}

// GetEmbedding requests an embedding asynchronously. When the queue
// is full the result channel carries an error instead of blocking the
// caller.
func (s *Service) GetEmbedding(content string) <-chan Result {
	resultChan := make(chan Result, 1)
	select {
	case s.workQueue <- work{content: content, result: resultChan}:
	default:
		resultChan <- Result{
			Content: content,
			Error:   fmt.Errorf("embedding queue is full, try again later"),
		}
		close(resultChan)
	}
	return resultChan
}

// Close shuts the pool down and waits for in-flight work.
func (s *Service) Close() {
	if s.workQueue != nil {
		close(s.workQueue)
	}
	s.wg.Wait()
}

// Embed hashes the text's tokens into a Dim-dimensional unit vector.
// Identical text always produces the identical vector.
func Embed(content string) []float32 {
	vec := make([]float32, Dim)
	for _, token := range tokenize(content) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()
		bucket := sum % Dim
		// Second hash bit picks the sign so buckets cancel rather
		// than only accumulate.
		sign := float32(1)
		if (sum>>16)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(content string) []string {
	return strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
