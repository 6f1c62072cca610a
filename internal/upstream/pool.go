package upstream

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/dmitrijs2005/attachlink/internal/descriptor"
)

var ErrEmptyPool = errors.New("upload pool is empty")

// Pool spreads uploads over several endpoints by picking one uniformly at
// random per call. It keeps no state between calls.
type Pool struct {
	members []Uploader
	intn    func(n int) int
}

func NewPool(members ...Uploader) (*Pool, error) {
	if len(members) == 0 {
		return nil, ErrEmptyPool
	}
	return &Pool{members: append([]Uploader(nil), members...), intn: rand.IntN}, nil
}

func (p *Pool) Len() int { return len(p.members) }

// Pick returns a random member.
func (p *Pool) Pick() Uploader {
	return p.members[p.intn(len(p.members))]
}

// Upload forwards f to a random member.
func (p *Pool) Upload(ctx context.Context, f File) (descriptor.Locator, error) {
	return p.Pick().Upload(ctx, f)
}
