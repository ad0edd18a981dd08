package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookIdentity(t *testing.T) {
	tests := []struct {
		name     string
		volume   int
		title    string
		author   string
		expected string
	}{
		{"lowercases and trims", 3, "  The Dispossessed ", "Ursula K. Le Guin", "3::the dispossessed::ursula k. le guin"},
		{"volume distinguishes rereads", 5, "Beloved", "Toni Morrison", "5::beloved::toni morrison"},
		{"empty fields still produce a key", 1, "", "", "1::::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BookIdentity(tt.volume, tt.title, tt.author))
		})
	}
}

func TestBookIdentity_MatchesRecordIdentity(t *testing.T) {
	rec := &BookRecord{Volume: 2, Title: "PIRANESI", Author: "Susanna Clarke"}
	assert.Equal(t, BookIdentity(2, "piranesi", "susanna clarke"), rec.Identity())
}

func TestMonthOrder(t *testing.T) {
	assert.Equal(t, 1, MonthOrder("January"))
	assert.Equal(t, 12, MonthOrder("December"))
	assert.Equal(t, 0, MonthOrder(""))
	assert.Equal(t, 1, MonthOrder("january"))
	assert.Equal(t, 0, MonthOrder("Smarch"))
}

func TestLegacyYear(t *testing.T) {
	// With volume 7 current in 2026, volume 1 maps to 2020.
	assert.Equal(t, 2020, LegacyYear(1, 7, 2026))
	assert.Equal(t, 2026, LegacyYear(7, 7, 2026))
}

func TestMergeResourceLinks_DedupesAndCaps(t *testing.T) {
	existing := []ResourceLink{
		{Label: "Amazon", URL: "https://a.example/1"},
		{Label: "ThriftBooks", URL: "https://t.example/1"},
	}
	incoming := []ResourceLink{
		{Label: "amazon", URL: "https://a.example/1"}, // dup, label case-insensitive
		{Label: "Bookshop", URL: "https://b.example/1"},
		{Label: "", URL: "https://dropped.example"}, // malformed
	}

	merged := MergeResourceLinks(existing, incoming)
	assert.Len(t, merged, 3)
	assert.Equal(t, "Amazon", merged[0].Label)
	assert.Equal(t, "Bookshop", merged[2].Label)
}

func TestMergeResourceLinks_Limit(t *testing.T) {
	var many []ResourceLink
	for i := 0; i < ResourceLinkLimit+5; i++ {
		many = append(many, ResourceLink{Label: "L", URL: string(rune('a' + i))})
	}
	assert.Len(t, MergeResourceLinks(nil, many), ResourceLinkLimit)
}

func TestRemoveResourceLabel(t *testing.T) {
	links := []ResourceLink{
		{Label: "ThriftBooks", URL: "https://t.example/1"},
		{Label: "thriftbooks", URL: "https://t.example/2"},
		{Label: "Amazon", URL: "https://a.example/1"},
	}
	out := RemoveResourceLabel(links, ThriftBooksLabel)
	assert.Len(t, out, 1)
	assert.Equal(t, "Amazon", out[0].Label)
}
