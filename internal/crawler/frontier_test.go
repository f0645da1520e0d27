package crawler

import "testing"

func TestFrontier(t *testing.T) {
	t.Parallel()

	t.Run("seeds start url at depth zero", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier("https://site.test/")
		if f.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", f.Len())
		}
		if d, ok := f.Depth("https://site.test/"); !ok || d != 0 {
			t.Errorf("Depth(start) = %d, %v", d, ok)
		}
	})

	t.Run("pops in FIFO order", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier("https://site.test/")
		f.Push("https://site.test/a", 1)
		f.Push("https://site.test/b", 1)

		var got []string
		for {
			e, ok := f.Pop()
			if !ok {
				break
			}
			got = append(got, e.URL)
		}
		want := []string{"https://site.test/", "https://site.test/a", "https://site.test/b"}
		if len(got) != len(want) {
			t.Fatalf("popped %v", got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("pop %d = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("rejects duplicates and visited urls", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier("https://site.test/")
		if !f.Push("https://site.test/a", 1) {
			t.Error("expected first push to succeed")
		}
		if f.Push("https://site.test/a", 2) {
			t.Error("expected duplicate push to fail")
		}
		if d, _ := f.Depth("https://site.test/a"); d != 1 {
			t.Errorf("depth of first discovery overwritten: %d", d)
		}

		f.MarkVisited("https://site.test/v")
		if f.Push("https://site.test/v", 1) {
			t.Error("expected push of visited url to fail")
		}
	})

	t.Run("tracks failures separately", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier("https://site.test/")
		f.MarkVisited("https://site.test/x")
		f.MarkFailed("https://site.test/x")
		if !f.Visited().Contains("https://site.test/x") || !f.Failed().Contains("https://site.test/x") {
			t.Error("expected url in both sets")
		}
		if f.Failed().Len() != 1 {
			t.Errorf("Failed().Len() = %d", f.Failed().Len())
		}
	})

	t.Run("pop on empty", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier("https://site.test/")
		f.Pop()
		if _, ok := f.Pop(); ok {
			t.Error("expected empty frontier")
		}
	})
}

func TestNormalizeStartURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://Example.COM", want: "https://example.com/"},
		{in: "  http://example.com/a#frag ", want: "http://example.com/a"},
		{in: "HTTPS://example.com/x?y=1", want: "https://example.com/x?y=1"},
		{in: "ftp://example.com/", wantErr: true},
		{in: "example.com", wantErr: true},
		{in: "https://", wantErr: true},
		{in: "::", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeStartURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeStartURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
