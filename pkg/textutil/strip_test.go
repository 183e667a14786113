package textutil

import "testing"

func TestStripTags(t *testing.T) {
	cases := map[string]string{
		"  plain text  ":                         "plain text",
		"<b>Great</b> movie":                     "Great movie",
		"<p>First</p><p>Second</p>":              "First\nSecond",
		"a<br>b":                                 "a\nb",
		"ok<script>alert('x')</script> fine":     "ok fine",
		"Tom &amp; Jerry":                        "Tom & Jerry",
		"<style>p{color:red}</style>   spaced   ": "spaced",
		"<div>unterminated":                      "unterminated",
	}
	for in, want := range cases {
		if got := StripTags(in); got != want {
			t.Fatalf("StripTags(%q) = %q, want %q", in, got, want)
		}
	}
}
