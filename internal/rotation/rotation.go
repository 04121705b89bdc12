// Package rotation estimates where a server is in its map rotation.
//
// The control API only reports the current and next map names, and a map
// may appear more than once in a rotation. Infer returns every position
// consistent with what was observed instead of picking one.
package rotation

import "sort"

// Named is the subset of a map value the inference needs.
type Named interface {
	Raw() string
	IsBetweenMatches() bool
}

// Positions holds the candidate rotation indexes, sorted ascending.
type Positions struct {
	Current []int
	Next    []int
}

// Empty reports whether no position could be inferred.
func (p Positions) Empty() bool { return len(p.Current) == 0 }

func (p Positions) IsCurrent(i int) bool { return contains(p.Current, i) }
func (p Positions) IsNext(i int) bool    { return contains(p.Next, i) }

// Infer maps the observed current and next map onto rotation indexes.
//
//   - between matches, or an empty rotation: no positions
//   - current occurs once: that index
//   - otherwise: the predecessor of every occurrence of next (index 0
//     wraps to len-1), even when current is missing from the rotation
//
// Next positions advance each current position by one, wrapping len-1 to 0.
func Infer[M Named](rot []M, current, next M) Positions {
	if current.IsBetweenMatches() || len(rot) == 0 {
		return Positions{}
	}

	n := len(rot)
	var occurrences []int
	for i, m := range rot {
		if m.Raw() == current.Raw() {
			occurrences = append(occurrences, i)
		}
	}

	var cur []int
	if len(occurrences) == 1 {
		cur = occurrences
	} else {
		for i, m := range rot {
			if m.Raw() != next.Raw() {
				continue
			}
			prev := i - 1
			if i == 0 {
				prev = n - 1
			}
			cur = append(cur, prev)
		}
	}

	cur = normalize(cur)
	nxt := make([]int, 0, len(cur))
	for _, i := range cur {
		nxt = append(nxt, (i+1)%n)
	}
	return Positions{Current: cur, Next: normalize(nxt)}
}

func normalize(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := append([]int(nil), in...)
	sort.Ints(out)
	w := 1
	for r := 1; r < len(out); r++ {
		if out[r] != out[w-1] {
			out[w] = out[r]
			w++
		}
	}
	return out[:w]
}

func contains(s []int, v int) bool {
	i := sort.SearchInts(s, v)
	return i < len(s) && s[i] == v
}
