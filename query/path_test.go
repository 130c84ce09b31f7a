// query/path_test.go
package query

import (
	"testing"
)

func TestResolve_Simple(t *testing.T) {
	p := alice()

	got, ok := Resolve(pAge, p)
	if !ok {
		t.Fatal("Resolve(age) ok = false, want true")
	}
	if got != 34 {
		t.Errorf("Resolve(age) = %d, want 34", got)
	}
}

func TestResolve_Self(t *testing.T) {
	got, ok := Resolve(Self[int](), 42)
	if !ok || got != 42 {
		t.Errorf("Resolve(Self, 42) = %d, %v, want 42, true", got, ok)
	}
}

func TestResolve_OptionalPresent(t *testing.T) {
	p := alice()

	city, ok := Resolve(pHomeCity, p)
	if !ok {
		t.Fatal("Resolve(home.city) ok = false, want true")
	}
	if city != "Utrecht" {
		t.Errorf("Resolve(home.city) = %q, want Utrecht", city)
	}
}

func TestResolve_OptionalAbsent(t *testing.T) {
	p := alice()
	p.Home = nil

	if _, ok := Resolve(pHomeCity, p); ok {
		t.Error("Resolve(home.city) with nil home: ok = true, want false")
	}
}

func TestResolve_MapKey(t *testing.T) {
	p := alice()

	tests := []struct {
		name   string
		key    string
		want   string
		wantOK bool
	}{
		{"present key", "team", "core", true},
		{"absent key", "region", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(Key(pAttrs, tt.key), p)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_MapKeyNilMap(t *testing.T) {
	p := alice()
	p.Attrs = nil

	if _, ok := Resolve(Key(pAttrs, "team"), p); ok {
		t.Error("Resolve on nil map: ok = true, want false")
	}
}

func TestWithValue_Simple(t *testing.T) {
	p := alice()

	got := WithValue(pAge, p, 50)
	if got.Age != 50 {
		t.Errorf("Age = %d, want 50", got.Age)
	}
	if p.Age != 34 {
		t.Errorf("original mutated: Age = %d, want 34", p.Age)
	}
}

func TestWithValue_Nested(t *testing.T) {
	p := alice()

	got := WithValue(pHomeCity, p, "Leiden")
	if got.Home.City != "Leiden" {
		t.Errorf("Home.City = %q, want Leiden", got.Home.City)
	}
	if p.Home.City != "Utrecht" {
		t.Errorf("original mutated: Home.City = %q, want Utrecht", p.Home.City)
	}
	if got.Home == p.Home {
		t.Error("nested pointer shared with original, want copy")
	}
}

func TestWithValue_SeveredOptional(t *testing.T) {
	p := alice()
	p.Home = nil

	got := WithValue(pHomeCity, p, "Leiden")
	if got.Home != nil {
		t.Error("write through nil optional created a value, want no-op")
	}
}

func TestWithValue_MapKeyCreates(t *testing.T) {
	p := alice()

	got := WithValue(Key(pAttrs, "region"), p, "eu")
	if got.Attrs["region"] != "eu" {
		t.Errorf("Attrs[region] = %q, want eu", got.Attrs["region"])
	}
	if _, ok := p.Attrs["region"]; ok {
		t.Error("original map mutated")
	}
}

func TestPathString(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"simple", pAge.String(), "age"},
		{"optional chain", pHomeCity.String(), "home?.city"},
		{"map key", Key(pAttrs, "team").String(), "attrs[team]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.path != tt.want {
				t.Errorf("String() = %q, want %q", tt.path, tt.want)
			}
		})
	}
}

func TestEqualSteps(t *testing.T) {
	if !pHomeCity.Equal(Join(NotNull(pHome), aCity)) {
		t.Error("identical composed paths not equal")
	}
	if pAge.Equal(NewField("age",
		func(p profile) int { return p.Age },
		func(p profile, v int) profile { p.Age = v; return p })) == false {
		t.Error("re-registered identical field not equal")
	}
	if EqualSteps(pAge.Steps(), pScore.Steps()) {
		t.Error("distinct fields compare equal")
	}
}
