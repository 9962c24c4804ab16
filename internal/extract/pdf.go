package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	ledongpdf "github.com/ledongthuc/pdf"
)

// EinoPDFReader 使用 eino-ext PDF Parser 提取整份文档的文字层
type EinoPDFReader struct {
	parser  *pdf.PDFParser
	timeout time.Duration
}

// NewEinoPDFReader 不按页拆分，返回整份文档的连续文本
func NewEinoPDFReader(ctx context.Context, timeout time.Duration) (*EinoPDFReader, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EinoPDFReader{parser: p, timeout: timeout}, nil
}

func (r *EinoPDFReader) ReadText(ctx context.Context, data []byte, uri string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	docs, err := r.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]any{"source": uri}),
	)
	if err != nil {
		return "", fmt.Errorf("eino PDF parser failed for %s: %w", uri, err)
	}

	var sb strings.Builder
	for _, d := range docs {
		if d == nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(d.Content)
	}
	return sb.String(), nil
}

// LedongPDFReader 基于 ledongthuc/pdf 的第二解析器，用于扫描件判定前的重试
type LedongPDFReader struct{}

func (LedongPDFReader) ReadText(ctx context.Context, data []byte, uri string) (text string, err error) {
	// 该库遇到损坏的交叉引用表会 panic
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("ledongthuc/pdf panic on %s: %v", uri, r)
		}
	}()

	reader, err := ledongpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", uri, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", uri, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("copy pdf text %s: %w", uri, err)
	}
	return buf.String(), ctx.Err()
}
