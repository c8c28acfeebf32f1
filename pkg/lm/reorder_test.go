package lm

import (
	"cmp"
	"math/rand"
	"reflect"
	"testing"

	"github.com/rhuss/lmscore/pkg/api"
)

func TestReordererRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		items := make([]int, rng.Intn(40))
		for i := range items {
			items[i] = rng.Intn(10)
		}

		r := NewReorderer(items, cmp.Compare[int])
		reordered := r.Reordered()

		for i := 1; i < len(reordered); i++ {
			if reordered[i-1] >= reordered[i] {
				t.Fatalf("reordered not strictly ascending: %v", reordered)
			}
		}

		// Answer each group with its own value; restoring must give back the input.
		got, err := RestoreOrder(r, reordered)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) == 0 {
			if len(got) != 0 {
				t.Fatalf("expected empty result, got %v", got)
			}
			continue
		}
		if !reflect.DeepEqual(got, items) {
			t.Fatalf("round trip mismatch: got %v, want %v", got, items)
		}
	}
}

func TestReordererFansOutDuplicates(t *testing.T) {
	items := []string{"b", "a", "b", "c", "a"}
	r := NewReorderer(items, cmp.Compare[string])

	if r.Len() != 3 {
		t.Fatalf("groups = %d, want 3", r.Len())
	}
	if got := r.Members(1); !reflect.DeepEqual(got, []string{"b", "b"}) {
		t.Errorf("members of group 1 = %v", got)
	}

	got, err := RestoreOrder(r, []int{10, 20, 30})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{20, 10, 20, 30, 10}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRestoreOrderCountMismatch(t *testing.T) {
	r := NewReorderer([]int{3, 1, 2}, cmp.Compare[int])
	if _, err := RestoreOrder(r, []int{1, 2}); err == nil {
		t.Fatal("expected error for missing results")
	}
}

func TestCompareTokenRequests(t *testing.T) {
	reqs := []api.TokenRequest{
		{Context: []int{1}, Continuation: []int{2}},
		{Context: []int{1, 2, 3}, Continuation: []int{4}},
		{Context: []int{1}, Continuation: []int{1}},
		{Context: []int{1, 2}, Continuation: []int{3, 4}},
	}
	r := NewReorderer(reqs, compareTokenRequests)

	var got [][]int
	for _, req := range r.Reordered() {
		got = append(got, req.Tokens())
	}
	want := [][]int{{1, 2, 3, 4}, {1, 1}, {1, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestChunks(t *testing.T) {
	items := make([]int, 45)
	chunks := Chunks(items, 20)
	if len(chunks) != 3 || len(chunks[0]) != 20 || len(chunks[1]) != 20 || len(chunks[2]) != 5 {
		t.Errorf("unexpected chunk sizes: %d chunks", len(chunks))
	}

	if got := Chunks([]int{}, 20); len(got) != 0 {
		t.Errorf("empty input gave %d chunks", len(got))
	}
	if got := Chunks(make([]int, 25), 0); len(got) != 2 {
		t.Errorf("default size gave %d chunks", len(got))
	}
}

func TestUntilChunks(t *testing.T) {
	mk := func(ctx string, until ...string) greedyItem {
		return greedyItem{req: api.GreedyRequest{Context: ctx, Until: until}}
	}
	items := []greedyItem{
		mk("a", "\n"), mk("b", "\n"), mk("c", "\n"),
		mk("d", "."),
		mk("e", "\n"),
	}

	chunks := untilChunks(items, 2)
	var sizes []int
	var untils [][]string
	for _, c := range chunks {
		sizes = append(sizes, len(c.items))
		untils = append(untils, c.until)
	}

	if want := []int{2, 1, 1, 1}; !reflect.DeepEqual(sizes, want) {
		t.Errorf("sizes = %v, want %v", sizes, want)
	}
	if want := [][]string{{"\n"}, {"\n"}, {"."}, {"\n"}}; !reflect.DeepEqual(untils, want) {
		t.Errorf("untils = %v, want %v", untils, want)
	}
}

func TestRollingWindows(t *testing.T) {
	toks := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	const prefix = 99

	windows := rollingWindows(toks, prefix, 4, 1)
	want := []window{
		{context: []int{99}, continuation: []int{0, 1, 2, 3}},
		{context: []int{3}, continuation: []int{4, 5, 6, 7}},
		{context: []int{5, 6, 7}, continuation: []int{8, 9}},
	}

	if len(windows) != len(want) {
		t.Fatalf("windows = %d, want %d", len(windows), len(want))
	}

	var predicted []int
	for i, w := range windows {
		d := w.disjoint()
		if !reflect.DeepEqual(d, want[i]) {
			t.Errorf("window %d = %+v, want %+v", i, d, want[i])
		}
		if n := len(d.context) + len(d.continuation); n > 5 {
			t.Errorf("window %d spans %d tokens, more than max+1", i, n)
		}
		predicted = append(predicted, d.continuation...)
	}
	if !reflect.DeepEqual(predicted, toks) {
		t.Errorf("predicted tokens = %v, want each token once", predicted)
	}
}

func TestRollingWindowsShortInput(t *testing.T) {
	if got := rollingWindows(nil, 0, 4, 1); got != nil {
		t.Errorf("empty input gave %v", got)
	}

	windows := rollingWindows([]int{5, 6}, 0, 4, 1)
	if len(windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(windows))
	}
	d := windows[0].disjoint()
	if !reflect.DeepEqual(d.context, []int{0}) || !reflect.DeepEqual(d.continuation, []int{5, 6}) {
		t.Errorf("window = %+v", d)
	}
}

func TestTruncateInput(t *testing.T) {
	tests := []struct {
		name       string
		ctx, cont  int
		maxLength  int
		wantLen    int
		wantCtxlen int
	}{
		{"fits", 3, 2, 8, 5, 3},
		{"exactly max+1", 5, 4, 8, 9, 5},
		{"context truncated", 5, 3, 6, 7, 4},
		{"continuation longer than window", 2, 10, 6, 7, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := api.TokenRequest{Context: make([]int, tt.ctx), Continuation: make([]int, tt.cont)}
			inp, ctxlen := truncateInput(req, tt.maxLength)
			if len(inp) != tt.wantLen || ctxlen != tt.wantCtxlen {
				t.Errorf("got (%d, %d), want (%d, %d)", len(inp), ctxlen, tt.wantLen, tt.wantCtxlen)
			}
		})
	}
}
