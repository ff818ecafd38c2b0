package embedding

import (
	"reflect"
	"testing"
)

func TestSplitWords(t *testing.T) {
	got := SplitWords("Hello, World!  it's\t42\nCats")
	want := []string{"hello", "world", "it", "s", "42", "cats"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitWords: got %v, want %v", got, want)
	}
	if len(SplitWords("  \n ")) != 0 {
		t.Error("expected no words")
	}
}

func TestHashString(t *testing.T) {
	if HashString("a") != HashString("a") {
		t.Error("hash should be deterministic")
	}
	if HashString("a") == HashString("b") {
		t.Error("different strings should hash differently")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
