package googlebooks

import "testing"

func TestImageLinks_BestURL(t *testing.T) {
	tests := []struct {
		name  string
		links imageLinks
		want  string
	}{
		{
			name: "extraLarge wins",
			links: imageLinks{
				ExtraLarge: "http://books.google.com/xl.jpg",
				Thumbnail:  "http://books.google.com/thumb.jpg",
			},
			want: "https://books.google.com/xl.jpg",
		},
		{
			name: "falls through to thumbnail",
			links: imageLinks{
				Thumbnail:      "http://books.google.com/thumb.jpg",
				SmallThumbnail: "http://books.google.com/small.jpg",
			},
			want: "https://books.google.com/thumb.jpg",
		},
		{
			name:  "no candidates",
			links: imageLinks{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.links.bestURL(); got != tt.want {
				t.Errorf("bestURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPublishedYear(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"2004-06-01", 2004},
		{"2004", 2004},
		{"junk", 0},
		{"1850", 0}, // outside the accepted range
		{"", 0},
	}

	for _, tt := range tests {
		if got := publishedYear(tt.input); got != tt.want {
			t.Errorf("publishedYear(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestPublishedMonth(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2004-06-01", "June"},
		{"2004-06", "June"},
		{"2004", ""},
		{"2004-13", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := publishedMonth(tt.input); got != tt.want {
			t.Errorf("publishedMonth(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
