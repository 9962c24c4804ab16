package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruit-go/internal/extract"
)

type fakeRenderer struct {
	pages    [][]byte
	err      error
	maxPages int
}

func (f *fakeRenderer) Render(_ []byte, maxPages int) ([][]byte, error) {
	f.maxPages = maxPages
	return f.pages, f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	pages int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, pages [][]byte) (string, error) {
	f.pages = len(pages)
	return f.text, f.err
}

var doc = extract.Document{Name: "scan.pdf", Format: extract.FormatPDF, Data: []byte("%PDF")}

func TestVisionEngineRecognize(t *testing.T) {
	r := &fakeRenderer{pages: [][]byte{{1}, {2}}}
	tr := &fakeTranscriber{text: "  张三\n电话 13800138000  "}
	e := NewVisionEngine(r, tr, 0)

	text, err := e.Recognize(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "张三\n电话 13800138000", text)
	assert.Equal(t, defaultMaxPages, r.maxPages)
	assert.Equal(t, 2, tr.pages)
}

func TestVisionEngineErrors(t *testing.T) {
	_, err := NewVisionEngine(&fakeRenderer{err: errors.New("bad pdf")}, &fakeTranscriber{}, 1).
		Recognize(context.Background(), doc)
	assert.EqualError(t, err, "bad pdf")

	_, err = NewVisionEngine(&fakeRenderer{}, &fakeTranscriber{}, 1).Recognize(context.Background(), doc)
	assert.ErrorContains(t, err, "no pages")

	_, err = NewVisionEngine(&fakeRenderer{pages: [][]byte{{1}}}, &fakeTranscriber{err: errors.New("429")}, 1).
		Recognize(context.Background(), doc)
	assert.EqualError(t, err, "429")
}

func TestNewOpenAIVisionRequiresKey(t *testing.T) {
	_, err := NewOpenAIVision(" ", "", "")
	assert.Error(t, err)

	v, err := NewOpenAIVision("sk-test", "", "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", v.modelName)
}
