package corev1

import "testing"

func TestParseRevisionRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"0", "0"},
		{"7", "7"},
		{"3-5", "3-5"},
		{"5-3", "3-5"},
		{"5-3-5", "3-5"},
	}
	for _, c := range cases {
		rev, err := ParseRevision(c.in)
		if err != nil {
			t.Fatalf("ParseRevision(%q): %v", c.in, err)
		}
		if got := rev.String(); got != c.want {
			t.Errorf("ParseRevision(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseRevisionInvalid(t *testing.T) {
	if _, err := ParseRevision("abc"); err == nil {
		t.Fatal("expected error parsing non-numeric revision")
	}
}

func TestRevisionIncrementPanicsOnJoin(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic incrementing a joined revision")
		}
	}()
	NewRevision(1, 2).Increment()
}

func TestRevisionIncrement(t *testing.T) {
	got := DefaultRevision().Increment()
	if got.String() != "1" {
		t.Errorf("Increment() = %q, want %q", got.String(), "1")
	}
}

func TestRevisionMerge(t *testing.T) {
	a := NewRevision(1)
	b := NewRevision(2)
	got := a.Merge(b)
	if got.String() != "1-2" {
		t.Errorf("Merge() = %q, want %q", got.String(), "1-2")
	}
	// merging with an overlapping component dedups
	c := NewRevision(2, 3)
	got = a.Merge(b).Merge(c)
	if got.String() != "1-2-3" {
		t.Errorf("Merge() = %q, want %q", got.String(), "1-2-3")
	}
}

func TestRevisionCompare(t *testing.T) {
	if NewRevision(1).Compare(NewRevision(2)) >= 0 {
		t.Error("expected 1 < 2")
	}
	if NewRevision(1, 2).Compare(NewRevision(1)) <= 0 {
		t.Error("expected [1,2] > [1] lexicographically by length")
	}
	if !NewRevision(1, 2).Equal(NewRevision(2, 1)) {
		t.Error("expected component order to not matter")
	}
}
