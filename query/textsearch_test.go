// query/textsearch_test.go
package query

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple words", "hello world", []string{"hello", "world"}},
		{"case folded", "Hello WORLD", []string{"hello", "world"}},
		{"punctuation splits", "a,b;c.d", []string{"a", "b", "c", "d"}},
		{"digits kept", "room 42", []string{"room", "42"}},
		{"empty", "", nil},
		{"only separators", "--- !!!", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEditDistanceAtMost(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		k    int
		want bool
	}{
		{"identical zero budget", "chocolate", "chocolate", 0, true},
		{"substitution", "chocolate", "chocolpte", 1, true},
		{"deletion", "chocolate", "choclate", 1, true},
		{"insertion", "chocolate", "chocollate", 1, true},
		{"two edits one budget", "chocolate", "choclat", 1, false},
		{"two edits two budget", "chocolate", "choclat", 2, true},
		{"length gap exceeds budget", "ab", "abcdef", 2, false},
		{"empty vs short", "", "ab", 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := editDistanceAtMost(tt.a, tt.b, tt.k); got != tt.want {
				t.Errorf("editDistanceAtMost(%q, %q, %d) = %v, want %v", tt.a, tt.b, tt.k, got, tt.want)
			}
		})
	}
}

func TestSearchMatch(t *testing.T) {
	value := "Fresh praline chocolate, tasting notes attached"

	tests := []struct {
		name       string
		q          string
		maxDist    int
		requireAll bool
		want       bool
	}{
		{"one exact token", "praline", 0, true, true},
		{"all tokens exact", "praline notes", 0, true, true},
		{"any-mode single hit", "praline garbage", 0, false, true},
		{"all-mode single miss", "praline garbage", 0, true, false},
		{"fuzzy token", "prallne", 1, true, true},
		{"empty query matches", "", 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := searchMatch(value, tt.q, tt.maxDist, tt.requireAll); got != tt.want {
				t.Errorf("searchMatch(%q) = %v, want %v", tt.q, got, tt.want)
			}
		})
	}
}
