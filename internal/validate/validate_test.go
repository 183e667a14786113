package validate

import "testing"

type reviewInput struct {
	MovieID string `json:"movieId" validate:"required"`
	Content string `json:"content" validate:"required,max=20"`
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestStruct(t *testing.T) {
	cases := []struct {
		name string
		in   reviewInput
		want string
	}{
		{name: "valid", in: reviewInput{MovieID: "m", Content: "great", Rating: 5}},
		{name: "missing movie", in: reviewInput{Content: "great", Rating: 5}, want: "movieId is required"},
		{name: "rating too high", in: reviewInput{MovieID: "m", Content: "great", Rating: 6}, want: "rating must be <= 5"},
		{name: "content too long", in: reviewInput{MovieID: "m", Content: "this content is far too long", Rating: 3}, want: "content must be at most 20 characters"},
		{name: "bad email", in: reviewInput{MovieID: "m", Content: "ok", Rating: 3, Email: "nope"}, want: "email must be a valid email address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.in)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tc.want {
				t.Fatalf("got %v, want %q", err, tc.want)
			}
		})
	}
}

func TestMap(t *testing.T) {
	got := Map(reviewInput{Rating: 0})
	if got["movieId"] != "is required" || got["content"] != "is required" || got["rating"] != "must be >= 1" {
		t.Fatalf("unexpected map %v", got)
	}
	if Map(reviewInput{MovieID: "m", Content: "c", Rating: 1}) != nil {
		t.Fatalf("expected nil for valid input")
	}
}
