// Package codeindex maintains a bloom filter over active coupon codes so the
// validate-code path can reject unknown codes without a database round trip.
package codeindex

import (
	"context"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"

	"github.com/lumimart/storefront/internal/domain/coupon"
)

const falsePositiveRate = 0.001

// Index is a concurrency-safe probabilistic set of coupon codes. A negative
// MightContain answer is definitive; positives must still be confirmed
// against storage.
type Index struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// New builds an Index from the given codes. Codes are matched
// case-insensitively.
func New(codes []string) *Index {
	n := uint(len(codes))
	if n < 1024 {
		n = 1024
	}
	f := bloom.NewWithEstimates(n, falsePositiveRate)
	for _, code := range codes {
		f.AddString(normalize(code))
	}
	return &Index{filter: f}
}

// Load fetches every active coupon code from the repository and builds an
// Index over them.
func Load(ctx context.Context, repo coupon.Repository) (*Index, error) {
	codes, err := repo.ActiveCodes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active codes")
	}
	return New(codes), nil
}

// MightContain reports whether code may be an active coupon code.
func (i *Index) MightContain(code string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.filter.TestString(normalize(code))
}

// Replace atomically swaps in a filter rebuilt from codes. Intended for
// periodic refresh after admin writes.
func (i *Index) Replace(codes []string) {
	next := New(codes)
	i.mu.Lock()
	i.filter = next.filter
	i.mu.Unlock()
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
