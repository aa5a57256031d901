package merge

import (
	"reflect"
	"testing"
)

func TestMergeMaps_LeafConflictIncomingWins(t *testing.T) {
	base := map[string]any{"origin": "云南", "sweetness": "8分甜"}
	incoming := map[string]any{"origin": "海南"}

	got := MergeMaps(base, incoming)

	if got["origin"] != "海南" {
		t.Errorf("expected incoming origin to win, got %v", got["origin"])
	}
	if got["sweetness"] != "8分甜" {
		t.Errorf("expected untouched key to survive, got %v", got["sweetness"])
	}
}

func TestMergeMaps_NestedMapsMergeRecursively(t *testing.T) {
	base := map[string]any{
		"origin": map[string]any{"province": "云南", "county": "蒙自"},
	}
	incoming := map[string]any{
		"origin": map[string]any{"county": "元阳", "altitude": "1600m"},
	}

	got := MergeMaps(base, incoming)

	want := map[string]any{
		"origin": map[string]any{
			"province": "云南",
			"county":   "元阳",
			"altitude": "1600m",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMergeMaps_MapReplacedByScalar(t *testing.T) {
	base := map[string]any{"origin": map[string]any{"province": "云南"}}
	incoming := map[string]any{"origin": "海南"}

	got := MergeMaps(base, incoming)

	if got["origin"] != "海南" {
		t.Errorf("expected scalar to replace map, got %v", got["origin"])
	}
}

func TestMerge_NonMapInputsReplaceEntirely(t *testing.T) {
	if got := Merge("old", map[string]any{"k": "v"}); !reflect.DeepEqual(got, map[string]any{"k": "v"}) {
		t.Errorf("expected incoming map to replace scalar base, got %v", got)
	}
	if got := Merge(map[string]any{"k": "v"}, "new"); got != "new" {
		t.Errorf("expected scalar incoming to replace map base, got %v", got)
	}
}

func TestMergeMaps_DoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1}}
	incoming := map[string]any{"a": map[string]any{"y": 2}}

	got := MergeMaps(base, incoming)
	got["a"].(map[string]any)["x"] = 99

	if base["a"].(map[string]any)["x"] != 1 {
		t.Error("base was mutated through the merge result")
	}
	if _, ok := base["a"].(map[string]any)["y"]; ok {
		t.Error("base gained a key from incoming")
	}
	if len(incoming["a"].(map[string]any)) != 1 {
		t.Error("incoming was mutated")
	}
}

// Last-write-wins is not associative across differing orders in general, but
// for disjoint-key b and c the application order must not matter.
func TestMergeMaps_DisjointKeysCommute(t *testing.T) {
	a := map[string]any{
		"shared": map[string]any{"base": true},
		"leaf":   "a",
	}
	b := map[string]any{"shared": map[string]any{"fromB": 1}, "onlyB": "b"}
	c := map[string]any{"shared": map[string]any{"fromC": 2}, "onlyC": "c"}

	abc := MergeMaps(MergeMaps(a, b), c)
	acb := MergeMaps(MergeMaps(a, c), b)

	if !reflect.DeepEqual(abc, acb) {
		t.Errorf("disjoint merges differ by order:\n ab,c = %v\n ac,b = %v", abc, acb)
	}
}

func TestMergeMaps_ConflictingKeysDoNotCommute(t *testing.T) {
	a := map[string]any{}
	b := map[string]any{"k": "b"}
	c := map[string]any{"k": "c"}

	abc := MergeMaps(MergeMaps(a, b), c)
	acb := MergeMaps(MergeMaps(a, c), b)

	if reflect.DeepEqual(abc, acb) {
		t.Error("expected conflicting leaf writes to depend on order")
	}
	if abc["k"] != "c" || acb["k"] != "b" {
		t.Errorf("last writer must win: got %v and %v", abc["k"], acb["k"])
	}
}
