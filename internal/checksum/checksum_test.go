package checksum

import "testing"

func TestLinksStable(t *testing.T) {
	a := Links("r1", "job-1")
	b := Links("r1", "job-1")
	if a != b {
		t.Fatalf("digest not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64", len(a))
	}
}

func TestLinksSeparatesValues(t *testing.T) {
	if Links("x", "ab", "") == Links("x", "a", "b") {
		t.Error("values must be delimited")
	}
	if Links("r1", "") == Links("r1", "job-1") {
		t.Error("link change must change digest")
	}
}
