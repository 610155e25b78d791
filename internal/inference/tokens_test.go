package inference

import "testing"

func TestNewTokenCounter_unknownEncodingFallsBack(t *testing.T) {
	c, err := NewTokenCounter("no_such_encoding")
	if err == nil {
		t.Fatal("expected error for unknown encoding")
	}
	if _, ok := c.(WordCounter); !ok {
		t.Errorf("fallback counter = %T, want WordCounter", c)
	}
}

func TestNewTokenCounter_loadsEmbeddedEncoding(t *testing.T) {
	c, err := NewTokenCounter("cl100k_base")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*bpeCounter); !ok {
		t.Fatalf("counter = %T, want *bpeCounter", c)
	}
	if n := c.Count("hello world"); n != 2 {
		t.Errorf("Count(hello world) = %d, want 2", n)
	}
	if got := c.Truncate("hello world", 1); got != "hello" {
		t.Errorf("Truncate = %q, want hello", got)
	}
}

func TestWordCounter(t *testing.T) {
	var c WordCounter
	tests := []struct {
		text  string
		limit int
		count int
		want  string
	}{
		{"one two  three\nfour", 2, 4, "one two"},
		{"one two", 5, 2, "one two"},
		{"  lead space", 1, 2, "  lead"},
		{"anything", 0, 1, ""},
		{"", 3, 0, ""},
	}
	for _, tt := range tests {
		if got := c.Count(tt.text); got != tt.count {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.count)
		}
		if got := c.Truncate(tt.text, tt.limit); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
		}
	}
}
