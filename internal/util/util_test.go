// internal/util/util_test.go
package util

import "testing"

func TestClipLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{name: "fits", in: "hello", width: 10, want: "hello"},
		{name: "exact", in: "hello", width: 5, want: "hello"},
		{name: "ascii", in: "helloworld", width: 6, want: "hello…"},
		{name: "multibyte", in: "こんにちは世界", width: 5, want: "こんにち…"},
		{name: "single column", in: "hello", width: 1, want: "…"},
		{name: "no width", in: "hello", width: 0, want: "hello"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClipLine(tt.in, tt.width); got != tt.want {
				t.Fatalf("ClipLine(%q,%d)=%q want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestClipLines(t *testing.T) {
	t.Parallel()

	got := ClipLines([]string{"JMeterAgent: ok", "JMeterAgent: 🏃 Running JMeter: /opt/jmeter/bin/jmeter"}, 15)
	want := "JMeterAgent: ok\nJMeterAgent: 🏃…"
	if got != want {
		t.Fatalf("ClipLines=%q want %q", got, want)
	}
	if got := ClipLines(nil, 10); got != "" {
		t.Fatalf("ClipLines(nil)=%q want empty", got)
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{name: "short", in: "load test failed", width: 40, want: "load test failed"},
		{name: "words", in: "load test failed: exit status 1", width: 12, want: "load test\nfailed: exit\nstatus 1"},
		{name: "long word", in: "abcdefghij k", width: 4, want: "abcd\nefgh\nij k"},
		{name: "keeps newlines", in: "a\n\nb", width: 3, want: "a\n\nb"},
		{name: "no width", in: "a b", width: 0, want: "a b"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Wrap(tt.in, tt.width); got != tt.want {
				t.Fatalf("Wrap(%q,%d)=%q want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}
