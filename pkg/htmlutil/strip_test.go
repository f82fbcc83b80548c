package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text no tags",
			input:    "Hello world",
			expected: "Hello world",
		},
		{
			name:     "simple paragraph",
			input:    "<p>Hello world</p>",
			expected: "Hello world",
		},
		{
			name:     "multiple paragraphs",
			input:    "<p>First paragraph</p><p>Second paragraph</p>",
			expected: "First paragraph\nSecond paragraph",
		},
		{
			name:     "nested inline tags",
			input:    "<p><strong>Bold</strong> and <em>italic</em></p>",
			expected: "Bold and italic",
		},
		{
			name:     "br variants",
			input:    "Line one<br>Line two<br/>Line three<br />Line four",
			expected: "Line one\nLine two\nLine three\nLine four",
		},
		{
			name:     "tags with attributes",
			input:    `<p style="font-weight: 600">Styled text</p>`,
			expected: "Styled text",
		},
		{
			name:     "entities decoded",
			input:    "<p>Tom &amp; Jerry &mdash; &quot;issue&quot; &#39;one&#39;</p>",
			expected: "Tom & Jerry — \"issue\" 'one'",
		},
		{
			name:     "script body dropped",
			input:    "<p>Visible</p><script>alert('x')</script><p>Also visible</p>",
			expected: "Visible\nAlso visible",
		},
		{
			name:     "list items",
			input:    "<ul><li>Cover story</li><li>Reviews</li></ul>",
			expected: "Cover story\nReviews",
		},
		{
			name:     "whitespace collapsed within lines",
			input:    "<p>Too    many     spaces</p>",
			expected: "Too many spaces",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripTags(tt.input))
		})
	}
}

func TestStripTags_IndexerDescription(t *testing.T) {
	t.Parallel()

	input := `<div><p>Wired Magazine &ndash; December 2023</p><p>Retail PDF, 120 pages.</p></div>`
	expected := "Wired Magazine – December 2023\nRetail PDF, 120 pages."
	assert.Equal(t, expected, StripTags(input))
}
