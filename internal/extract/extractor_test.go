package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruit-go/internal/apperrors"
)

// fakePDFReader 返回固定文本或错误，并记录调用次数
type fakePDFReader struct {
	text  string
	err   error
	calls int
}

func (f *fakePDFReader) ReadText(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

// buildDocx 在内存中构造最小可用的 docx
func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"[Content_Types].xml": docxContentTypes,
		"word/document.xml":   document,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestExtractor(pdf PDFTextReader) *Extractor {
	return NewExtractor(pdf, WithLogger(zerolog.Nop()))
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"resume.TXT":      FormatText,
		"a/b/简历.pdf":      FormatPDF,
		"x.docx":          FormatDocx,
		"old.doc":         FormatDoc,
		"data.json":       FormatJSON,
		"pdf":             FormatPDF,
		".json":           FormatJSON,
		"image.png":       FormatUnknown,
		"":                FormatUnknown,
		"notes.md":        FormatText,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseFormat(in), in)
	}
}

func TestExtractPlainText(t *testing.T) {
	e := newTestExtractor(nil)

	text, err := e.Extract(context.Background(), Document{Name: "a.txt", Format: FormatText, Data: []byte("张三 Java 工程师")})
	require.NoError(t, err)
	assert.Equal(t, "张三 Java 工程师", text)

	_, err = e.Extract(context.Background(), Document{Name: "b.txt", Format: FormatText, Data: []byte("  \n\t ")})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEmptyContent)
	assert.True(t, apperrors.IsExtraction(err))
	assert.Contains(t, err.Error(), "content is empty")
}

func TestExtractJSON(t *testing.T) {
	e := newTestExtractor(nil)

	text, err := e.Extract(context.Background(), Document{
		Name: "r.json", Format: FormatJSON,
		Data: []byte(`{"name":"李四","skills":["Go","<k8s>"]}`),
	})
	require.NoError(t, err)
	assert.Contains(t, text, `"name": "李四"`)
	assert.Contains(t, text, "<k8s>", "不应转义 HTML 字符")

	_, err = e.Extract(context.Background(), Document{Name: "bad.json", Format: FormatJSON, Data: []byte(`{"name":`)})
	assert.ErrorIs(t, err, apperrors.ErrMalformedDocument)

	for _, empty := range []string{"null", "{}", "[]"} {
		_, err = e.Extract(context.Background(), Document{Name: "e.json", Format: FormatJSON, Data: []byte(empty)})
		assert.ErrorIs(t, err, apperrors.ErrEmptyContent, empty)
	}
}

func TestExtractDocx(t *testing.T) {
	e := newTestExtractor(nil)

	text, err := e.Extract(context.Background(), Document{
		Name: "r.docx", Format: FormatDocx,
		Data: buildDocx(t, "王五", "高级后端工程师"),
	})
	require.NoError(t, err)
	assert.Contains(t, text, "王五")
	assert.Contains(t, text, "高级后端工程师")

	_, err = e.Extract(context.Background(), Document{Name: "broken.docx", Format: FormatDocx, Data: []byte("not a zip")})
	require.Error(t, err)
	assert.True(t, apperrors.IsExtraction(err))
	assert.Contains(t, err.Error(), "另存为")
}

func TestExtractLegacyDocAlwaysFails(t *testing.T) {
	e := newTestExtractor(nil)
	for _, data := range [][]byte{nil, []byte("任何内容"), buildDocx(t, "即使是有效内容")} {
		_, err := e.Extract(context.Background(), Document{Name: "old.doc", Format: FormatDoc, Data: data})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrLegacyFormat)
		assert.Contains(t, err.Error(), ".docx")
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := newTestExtractor(nil).Extract(context.Background(), Document{Name: "x.png", Format: FormatUnknown, Data: []byte("x")})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func TestExtractPDF(t *testing.T) {
	reader := &fakePDFReader{text: "  张三\n简历正文  "}
	text, err := newTestExtractor(reader).Extract(context.Background(), Document{Name: "r.pdf", Format: FormatPDF, Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "张三\n简历正文", text)

	// 扫描件没有文字层，不是错误
	reader = &fakePDFReader{text: ""}
	text, err = newTestExtractor(reader).Extract(context.Background(), Document{Name: "scan.pdf", Format: FormatPDF})
	require.NoError(t, err)
	assert.Empty(t, text)

	reader = &fakePDFReader{err: errors.New("xref broken")}
	_, err = newTestExtractor(reader).Extract(context.Background(), Document{Name: "bad.pdf", Format: FormatPDF})
	assert.ErrorIs(t, err, apperrors.ErrMalformedDocument)
}

func TestNewDocument(t *testing.T) {
	doc, err := NewDocument("简历.PDF", FormatUnknown, strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, doc.Format)
	assert.Equal(t, []byte("data"), doc.Data)

	_, err = NewDocument("missing.txt", FormatText, nil)
	assert.ErrorIs(t, err, apperrors.ErrFileMissing)
}
