package profile

import (
	"reflect"
	"testing"
)

func TestMergeDomainsCommutative(t *testing.T) {
	a := []string{"b.com", "a.com"}
	b := []string{"c.com", "a.com"}

	ab := MergeDomains([][]string{a, b})
	ba := MergeDomains([][]string{b, a})

	if !reflect.DeepEqual(ab, ba) {
		t.Errorf("merge order changed the result: %v vs %v", ab, ba)
	}
	if want := []string{"a.com", "b.com", "c.com"}; !reflect.DeepEqual(ab, want) {
		t.Errorf("have %v, want %v", ab, want)
	}
}

func TestMergeDomainsIdempotent(t *testing.T) {
	l := []string{"z.com", "a.com", "a.com"}
	once := MergeDomains([][]string{l})
	twice := MergeDomains([][]string{once})
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge is not idempotent: %v vs %v", once, twice)
	}
}

func TestMergeDomainsCaseSensitive(t *testing.T) {
	merged := MergeDomains([][]string{{"a.com", "A.com", "a.com"}})
	want := []string{"A.com", "a.com"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("have %v, want %v", merged, want)
	}
}

func TestMergeDomainsDropsWhitespaceOnly(t *testing.T) {
	merged := MergeDomains([][]string{{"", "  ", "\t", "a.com"}})
	want := []string{"a.com"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("have %v, want %v", merged, want)
	}
}

func TestMergeDomainsEmpty(t *testing.T) {
	merged := MergeDomains(nil)
	if len(merged) != 0 {
		t.Errorf("have %v, want empty", merged)
	}
}
