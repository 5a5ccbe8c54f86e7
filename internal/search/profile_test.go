package search

import "testing"

func TestLoadBuiltinProfiles(t *testing.T) {
	for _, name := range []string{"fast", "deep", "stress"} {
		p, err := Load(name)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if p.Name != name {
			t.Errorf("profile %s reports name %q", name, p.Name)
		}
		if p.MaxSequences <= 0 || p.MaxEvents <= 0 {
			t.Errorf("profile %s has an empty budget", name)
		}
		if p.Workers <= 0 {
			t.Errorf("profile %s has no workers", name)
		}
	}
}

func TestDeepBudgetExceedsFast(t *testing.T) {
	fast, err := Load("fast")
	if err != nil {
		t.Fatal(err)
	}
	deep, err := Load("deep")
	if err != nil {
		t.Fatal(err)
	}
	if deep.MaxSequences <= fast.MaxSequences {
		t.Fatal("deep must search more sequences than fast")
	}
	if !deep.Capture {
		t.Fatal("deep should capture exemplars")
	}
}

func TestLoadUnknownProfile(t *testing.T) {
	if _, err := Load("definitely-not-a-profile"); err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
}

func TestListIncludesBuiltins(t *testing.T) {
	names := List()
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, want := range []string{"fast", "deep", "stress"} {
		if !seen[want] {
			t.Errorf("List() missing built-in %q", want)
		}
	}
}
