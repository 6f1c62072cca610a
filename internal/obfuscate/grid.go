package obfuscate

import (
	"image"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// TargetBlocks caps the number of blocks along each axis.
const TargetBlocks = 50

// grid splits an image into gx*gy equal blocks. gx and gy divide the
// width and height exactly, so no pixels are left over.
type grid struct {
	origin image.Point
	gx, gy int
	bw, bh int
}

func largestDivisor(n, limit int) int {
	if n <= 0 {
		return 1
	}
	for d := min(n, limit); d > 1; d-- {
		if n%d == 0 {
			return d
		}
	}
	return 1
}

func newGrid(bounds image.Rectangle) grid {
	w, h := bounds.Dx(), bounds.Dy()
	gx := largestDivisor(w, TargetBlocks)
	gy := largestDivisor(h, TargetBlocks)
	return grid{origin: bounds.Min, gx: gx, gy: gy, bw: w / gx, bh: h / gy}
}

func (g grid) count() int { return g.gx * g.gy }

// block returns the rectangle at raster position i (zero-based).
func (g grid) block(i int) image.Rectangle {
	x := g.origin.X + (i%g.gx)*g.bw
	y := g.origin.Y + (i/g.gx)*g.bh
	return image.Rect(x, y, x+g.bw, y+g.bh)
}

// sortKey digests the key character for block n (1-based) followed by n.
func sortKey(key []rune, n int) uint64 {
	idx := n % len(key)
	if idx == 0 {
		idx = len(key)
	}
	return xxhash.Sum64String(string(key[idx-1]) + strconv.Itoa(n))
}

// permutation returns, for each destination position k, the zero-based
// raster position of the source block that lands there.
func permutation(key string, count int) []int {
	runes := []rune(key)

	type entry struct {
		sum uint64
		n   int
	}
	entries := make([]entry, count)
	for i := range entries {
		n := i + 1
		entries[i] = entry{sum: sortKey(runes, n), n: n}
	}

	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.sum < b.sum:
			return -1
		case a.sum > b.sum:
			return 1
		}
		return a.n - b.n
	})

	perm := make([]int, count)
	for k, e := range entries {
		perm[k] = e.n - 1
	}
	return perm
}
