package repositories

import "testing"

func TestParticipantSetDigestOrderIndependent(t *testing.T) {
	a := participantSetDigest([]int{1, 2, 3})
	b := participantSetDigest([]int{3, 1, 2})
	if a != b {
		t.Fatalf("same set in a different order must digest identically")
	}
}

func TestParticipantSetDigestCollapsesDuplicates(t *testing.T) {
	a := participantSetDigest([]int{1, 2, 2, 3, 1})
	b := participantSetDigest([]int{1, 2, 3})
	if a != b {
		t.Fatalf("duplicate ids must not change the digest")
	}
}

func TestParticipantSetDigestDistinguishesSupersets(t *testing.T) {
	a := participantSetDigest([]int{1, 2})
	b := participantSetDigest([]int{1, 2, 3})
	if a == b {
		t.Fatalf("a superset must digest differently")
	}

	// concatenation ambiguity: {1, 23} vs {12, 3}
	if participantSetDigest([]int{1, 23}) == participantSetDigest([]int{12, 3}) {
		t.Fatalf("separator must prevent concatenation collisions")
	}
}
