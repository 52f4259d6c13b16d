package text

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseBody(t *testing.T, inner string) *Body {
	t.Helper()
	doc := etree.NewDocument()
	src := `<p:txBody xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><a:bodyPr/>` + inner + `</p:txBody>`
	require.NoError(t, doc.ReadFromString(src))
	return Parse(doc.Root())
}

func paragraphs(texts ...string) string {
	var sb strings.Builder
	for _, s := range texts {
		sb.WriteString(`<a:p><a:pPr algn="ctr"/>`)
		if s != "" {
			sb.WriteString(`<a:r><a:rPr lang="zh-CN" sz="2400" b="1"><a:solidFill><a:srgbClr val="FF0000"/></a:solidFill><a:latin typeface="Arial"/></a:rPr><a:t>`)
			sb.WriteString(s)
			sb.WriteString(`</a:t></a:r>`)
		}
		sb.WriteString(`<a:endParaRPr lang="zh-CN"/></a:p>`)
	}
	return sb.String()
}

func TestExtractLogicalText(t *testing.T) {
	tests := []struct {
		name    string
		inner   string
		markers []string
		want    string
	}{
		{
			name:  "runs split across one paragraph",
			inner: `<a:p><a:r><a:t>Evaluation</a:t></a:r><a:r><a:t> only.</a:t></a:r><a:r><a:t> Created with X</a:t></a:r></a:p>`,
			want:  "Evaluation only. Created with X",
		},
		{
			name:  "paragraphs joined by separator",
			inner: paragraphs("first", "", "third"),
			want:  "first\n\nthird",
		},
		{
			name:    "marker runs excluded",
			inner:   `<a:p><a:r><a:t>Quarterly results</a:t></a:r><a:r><a:t> Evaluation only.</a:t></a:r></a:p>`,
			markers: []string{"evaluation only"},
			want:    "Quarterly results",
		},
		{
			name:  "fields count as runs",
			inner: `<a:p><a:r><a:t>Page </a:t></a:r><a:fld id="{1}" type="slidenum"><a:t>3</a:t></a:fld></a:p>`,
			want:  "Page 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := parseBody(t, tt.inner)
			assert.Equal(t, tt.want, ExtractLogicalText(body, tt.markers))
		})
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		patterns []string
		want     bool
	}{
		{"case insensitive", "Evaluation only. Created with X", []string{"EVALUATION ONLY"}, true},
		{"any pattern", "Copyright 2004", []string{"Aspose", "Copyright"}, true},
		{"no match", "Quarterly results", []string{"Aspose"}, false},
		{"empty pattern ignored", "anything", []string{""}, false},
		{"empty text", "", []string{"a"}, false},
		{"unicode", "单击此处添加标题", []string{"添加标题"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesPattern(tt.text, tt.patterns))
		})
	}
}

func TestSubstituteProportional_Scenario(t *testing.T) {
	body := parseBody(t, paragraphs("今天天气很好", "明天也不错"))

	require.True(t, SubstituteProportional(body, "AB", Options{}))

	assert.Equal(t, "ABABAB\nABABA", body.RawText())
	for _, p := range body.Paragraphs {
		require.Len(t, p.Runs, 1)
		rPr := p.Runs[0].Style()
		require.NotNil(t, rPr, "style must be carried over")
		assert.Equal(t, "2400", rPr.SelectAttrValue("sz", ""))
		assert.Equal(t, "1", rPr.SelectAttrValue("b", ""))
		assert.NotNil(t, rPr.FindElement("./solidFill/srgbClr[@val='FF0000']"))
		assert.NotNil(t, rPr.FindElement("./latin[@typeface='Arial']"))
		assert.Equal(t, "ctr", p.Element.SelectElement("pPr").SelectAttrValue("algn", ""))
		assert.Equal(t, "endParaRPr", p.Element.ChildElements()[len(p.Element.ChildElements())-1].Tag)
	}
}

func TestSubstituteProportional_LengthPreservation(t *testing.T) {
	tests := [][]string{
		{"a"},
		{"hello world"},
		{"abc", "de"},
		{"x", "", "yyyyyyyyyy"},
		{"第一段内容比较长一些", "短", "中等长度的段落", "最后"},
		{"", "", "z"},
		{"a", "b", "c", "d", "e", "f", "g"},
	}

	for _, texts := range tests {
		t.Run(strings.Join(texts, "|"), func(t *testing.T) {
			body := parseBody(t, paragraphs(texts...))
			original := utf8.RuneCountInString(body.RawText())

			require.True(t, SubstituteProportional(body, "填充", Options{}))

			generated := 0
			for _, p := range body.Paragraphs {
				generated += utf8.RuneCountInString(p.Text(nil))
			}
			assert.Equal(t, original, generated+len(body.Paragraphs)-1)
			assert.Equal(t, original, utf8.RuneCountInString(body.RawText()))
		})
	}
}

func TestSubstituteProportional_EdgeCases(t *testing.T) {
	t.Run("empty body is skipped", func(t *testing.T) {
		body := parseBody(t, paragraphs("", ""))
		assert.False(t, SubstituteProportional(body, "AB", Options{}))
	})

	t.Run("no paragraphs is a no-op", func(t *testing.T) {
		body := parseBody(t, "")
		assert.False(t, SubstituteProportional(body, "AB", Options{}))
	})

	t.Run("marker only body gets minimum length", func(t *testing.T) {
		body := parseBody(t, paragraphs("Created with Aspose.Slides", "Aspose"))
		require.True(t, SubstituteProportional(body, "AB", Options{Markers: []string{"aspose"}, MinLength: 3}))
		assert.Equal(t, "ABA\n", body.RawText())
	})

	t.Run("empty filler falls back to default", func(t *testing.T) {
		body := parseBody(t, paragraphs("12345"))
		require.True(t, SubstituteProportional(body, "", Options{}))
		assert.Equal(t, GenerateFiller(DefaultFiller, 5), body.RawText())
	})

	t.Run("line breaks are dropped with the runs", func(t *testing.T) {
		body := parseBody(t, `<a:p><a:r><a:t>one</a:t></a:r><a:br/><a:r><a:t>two</a:t></a:r></a:p>`)
		require.True(t, SubstituteProportional(body, "x", Options{}))
		assert.Nil(t, body.Paragraphs[0].Element.SelectElement("br"))
		assert.Equal(t, "xxxxxx", body.RawText())
	})
}

func TestTargetLengths(t *testing.T) {
	assert.Equal(t, []int{6, 5}, TargetLengths([]int{6, 5}))
	assert.Equal(t, []int{}, TargetLengths(nil))
	assert.Equal(t, []int{0, 0}, TargetLengths([]int{0, 0}))
	assert.Equal(t, []int{9}, TargetLengths([]int{9}))
}

func TestGenerateFiller(t *testing.T) {
	assert.Equal(t, "ABABA", GenerateFiller("AB", 5))
	assert.Equal(t, "", GenerateFiller("AB", 0))
	assert.Equal(t, "模板", GenerateFiller("模板文字", 2))
}
