package rotation

import (
	"reflect"
	"testing"

	"hllstatus/internal/crcon"
)

func maps(raw ...string) []crcon.Map {
	out := make([]crcon.Map, 0, len(raw))
	for _, r := range raw {
		out = append(out, crcon.NewMap(r))
	}
	return out
}

const (
	a = "foy_warfare"
	b = "kursk_warfare"
	c = "carentan_warfare"
	d = "driel_warfare"
)

func TestInferRepeatedMap(t *testing.T) {
	t.Parallel()
	rot := maps(a, b, a, c)

	cases := []struct {
		name          string
		current, next string
		wantCur       []int
		wantNext      []int
	}{
		{"next disambiguates tail", a, c, []int{2}, []int{3}},
		{"next disambiguates head", a, b, []int{0}, []int{1}},
		{"unique current", b, d, []int{1}, []int{2}},
		{"unique current at end wraps", c, a, []int{3}, []int{0}},
		{"next not in rotation", a, d, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Infer(rot, crcon.NewMap(tc.current), crcon.NewMap(tc.next))
			if !reflect.DeepEqual(got.Current, tc.wantCur) || !reflect.DeepEqual(got.Next, tc.wantNext) {
				t.Fatalf("Infer=%+v want cur=%v next=%v", got, tc.wantCur, tc.wantNext)
			}
		})
	}
}

func TestInferKeepsAmbiguity(t *testing.T) {
	t.Parallel()
	rot := maps(a, b, a, b)
	got := Infer(rot, crcon.NewMap(a), crcon.NewMap(b))
	if !reflect.DeepEqual(got.Current, []int{0, 2}) || !reflect.DeepEqual(got.Next, []int{1, 3}) {
		t.Fatalf("Infer=%+v", got)
	}
	if !got.IsCurrent(2) || got.IsCurrent(1) || !got.IsNext(3) {
		t.Fatalf("membership helpers disagree with %+v", got)
	}
}

func TestInferWrapsFromHeadToTail(t *testing.T) {
	t.Parallel()
	// current=a appears twice; next=b sits at index 0 so its predecessor wraps.
	rot := maps(b, a, c, a)
	got := Infer(rot, crcon.NewMap(a), crcon.NewMap(b))
	if !reflect.DeepEqual(got.Current, []int{3}) || !reflect.DeepEqual(got.Next, []int{0}) {
		t.Fatalf("Infer=%+v", got)
	}
}

func TestInferUniqueCurrentIgnoresNext(t *testing.T) {
	t.Parallel()
	rot := maps(a, b, c, d)
	for i, m := range rot {
		for _, next := range []string{a, b, c, d, "Untitled_7", "mystery_map"} {
			got := Infer(rot, m, crcon.NewMap(next))
			if !reflect.DeepEqual(got.Current, []int{i}) {
				t.Fatalf("current=%s next=%s: got %v want [%d]", m.Raw(), next, got.Current, i)
			}
			if !reflect.DeepEqual(got.Next, []int{(i + 1) % len(rot)}) {
				t.Fatalf("current=%s: next positions %v", m.Raw(), got.Next)
			}
		}
	}
}

func TestInferBetweenMatches(t *testing.T) {
	t.Parallel()
	for _, rot := range [][]crcon.Map{maps(a, b, a, c), maps(a), nil} {
		got := Infer(rot, crcon.NewMap("Untitled_12"), crcon.NewMap(a))
		if !got.Empty() || got.Next != nil {
			t.Fatalf("between matches should yield no positions, got %+v", got)
		}
	}
}

func TestInferEdgeLengths(t *testing.T) {
	t.Parallel()
	if got := Infer(nil, crcon.NewMap(a), crcon.NewMap(b)); !got.Empty() {
		t.Fatalf("empty rotation: %+v", got)
	}
	got := Infer(maps(a), crcon.NewMap(a), crcon.NewMap(a))
	if !reflect.DeepEqual(got.Current, []int{0}) || !reflect.DeepEqual(got.Next, []int{0}) {
		t.Fatalf("single map rotation: %+v", got)
	}
}

func TestInferTrustsNextOverCurrent(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name          string
		rot           []crcon.Map
		current, next string
		wantCur       []int
		wantNext      []int
	}{
		// The predecessor of next is b, not the reported current map.
		{"predecessor differs from current", maps(a, b, c, a), a, c, []int{1}, []int{2}},
		{"current missing from rotation", maps(a, b, c), d, b, []int{0}, []int{1}},
		{"current missing, next repeated", maps(a, b, c, b), d, b, []int{0, 2}, []int{1, 3}},
		{"current and next missing", maps(a, b, c), d, "mystery_map", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Infer(tc.rot, crcon.NewMap(tc.current), crcon.NewMap(tc.next))
			if !reflect.DeepEqual(got.Current, tc.wantCur) || !reflect.DeepEqual(got.Next, tc.wantNext) {
				t.Fatalf("Infer=%+v want cur=%v next=%v", got, tc.wantCur, tc.wantNext)
			}
		})
	}
}
