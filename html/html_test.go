package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple",
			input: `<!DOCTYPE html><html><head><title>Test Title</title></head><body></body></html>`,
			want:  "Test Title",
		},
		{
			name: "whitespace is collapsed",
			input: `<html><head><title>
	  Go   Blog
	  </title></head></html>`,
			want: "Go Blog",
		},
		{
			name:  "entities are decoded",
			input: `<title>Tom &amp; Jerry &mdash; Wiki</title>`,
			want:  "Tom & Jerry — Wiki",
		},
		{
			name:  "markup inside title is text",
			input: `<title>a <b>bold</b> title</title>`,
			want:  "a <b>bold</b> title",
		},
		{
			name:  "first title wins",
			input: `<head><title>First</title><title>Second</title></head>`,
			want:  "First",
		},
		{
			name:  "svg title is skipped",
			input: `<html><body><svg><title>Icon</title></svg></body></html>`,
			want:  "",
		},
		{
			name:  "missing title",
			input: `<html><body><h1>Heading</h1></body></html>`,
			want:  "",
		},
		{
			name:  "title in body",
			input: `<html><body><title>Late</title></body></html>`,
			want:  "Late",
		},
		{
			name:  "non-breaking space survives",
			input: "<title>a\u00a0b</title>",
			want:  "a\u00a0b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TitleString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
