package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Plain text",
			input:    "안정 지원입니다",
			expected: "<p>안정 지원입니다</p>",
		},
		{
			name:     "Bold",
			input:    "**소신** 지원",
			expected: "<p><strong>소신</strong> 지원</p>",
		},
		{
			name:     "Hard wraps",
			input:    "첫째 줄\n둘째 줄",
			expected: "<p>첫째 줄<br />\n둘째 줄</p>",
		},
		{
			name:     "List",
			input:    "- 서울대\n- 연세대",
			expected: "<ul>\n<li>서울대</li>\n<li>연세대</li>\n</ul>",
		},
		{
			name:     "Strikethrough",
			input:    "~~불리~~",
			expected: "<p><del>불리</del></p>",
		},
		{
			name:     "Raw HTML is dropped",
			input:    "<script>alert(1)</script>",
			expected: "<!-- raw HTML omitted -->",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToHTML(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestToHTML_LinksOpenInNewTab(t *testing.T) {
	got, err := ToHTML("[모집요강](https://admission.snu.ac.kr)")
	require.NoError(t, err)

	assert.Contains(t, got, `href="https://admission.snu.ac.kr"`)
	assert.Contains(t, got, `target="_blank"`)
	assert.Contains(t, got, `rel="noopener noreferrer"`)
}

func TestToHTML_TableClass(t *testing.T) {
	input := "| 전형 | 50% cut |\n|---|---|\n| 학생부종합 | 2.1 |"

	got, err := ToHTML(input)
	require.NoError(t, err)

	assert.Contains(t, got, `<table class="answer-table">`)
	assert.Contains(t, got, "<td>학생부종합</td>")
}

func TestToHTML_Empty(t *testing.T) {
	got, err := ToHTML("")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
