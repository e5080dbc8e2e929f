package auricle

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		title, artist string
		otherTitle    string
		otherArtist   string
		same          bool
	}{
		{"Comedy", "Gen Hoshino", "comedy", "gen hoshino", true},
		{"  Comedy ", "Gen Hoshino", "Comedy", "Gen Hoshino", true},
		{"Comedy", "Gen Hoshino", "Comedy", "Other Artist", false},
		{"Ghost", "Justin Bieber", "Ghost ", "JUSTIN BIEBER", true},
	}
	for _, tc := range tests {
		got := NormalizeKey(tc.title, tc.artist) == NormalizeKey(tc.otherTitle, tc.otherArtist)
		if got != tc.same {
			t.Errorf("NormalizeKey(%q,%q) vs (%q,%q): same=%v, want %v",
				tc.title, tc.artist, tc.otherTitle, tc.otherArtist, got, tc.same)
		}
	}
}

func TestKeySeparatorPreventsCollision(t *testing.T) {
	// "abc" by "def" must not collide with "ab" by "cdef".
	if NormalizeKey("abc", "def") == NormalizeKey("ab", "cdef") {
		t.Error("composite key must keep title and artist distinct")
	}
}

func TestSameSong(t *testing.T) {
	byID := SongIdentity{TrackID: "abc", Title: "One", Artist: "A"}
	sameID := SongIdentity{TrackID: "abc", Title: "Completely Different", Artist: "B"}
	otherID := SongIdentity{TrackID: "xyz", Title: "One", Artist: "A"}
	noID := SongIdentity{Title: "one", Artist: "a"}

	if !byID.SameSong(sameID) {
		t.Error("matching track IDs must win over differing titles")
	}
	if byID.SameSong(otherID) {
		t.Error("differing track IDs must not match even with equal titles")
	}
	if !byID.SameSong(noID) {
		t.Error("identity without an ID must fall back to the normalized key")
	}
}

func TestLabelFor(t *testing.T) {
	if LabelFor(true) != LabelHit || LabelFor(false) != LabelFlop {
		t.Error("label mapping broken")
	}
}

func TestNamedCoversEveryFeature(t *testing.T) {
	var v FeatureVector
	for i := range v {
		v[i] = float64(i)
	}
	named := v.Named()
	if len(named) != NumFeatures {
		t.Fatalf("len = %d, want %d", len(named), NumFeatures)
	}
	if named["valence"] != float64(FeatValence) {
		t.Error("named view must follow positional order")
	}
}
