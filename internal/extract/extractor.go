package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/rs/zerolog"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/logger"
)

// Format 上传文档声明的格式
type Format string

const (
	FormatText    Format = "txt"
	FormatJSON    Format = "json"
	FormatDocx    Format = "docx"
	FormatDoc     Format = "doc" // 旧版 Word，无安全的解析器，始终拒绝
	FormatPDF     Format = "pdf"
	FormatUnknown Format = ""
)

// ParseFormat 根据文件名或扩展名/格式标签推断格式
func ParseFormat(nameOrExt string) Format {
	ext := strings.ToLower(strings.TrimSpace(nameOrExt))
	if e := filepath.Ext(ext); e != "" {
		ext = e
	}
	switch strings.TrimPrefix(ext, ".") {
	case "txt", "text", "md":
		return FormatText
	case "json":
		return FormatJSON
	case "docx":
		return FormatDocx
	case "doc":
		return FormatDoc
	case "pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}

// Scannable 该格式可能是扫描件，允许走降级流程
func (f Format) Scannable() bool { return f == FormatPDF }

// Document 待提取的文档
type Document struct {
	Name   string
	Format Format
	Data   []byte
}

// NewDocument 读入整个文档；format 为空时按文件名推断
func NewDocument(name string, format Format, r io.Reader) (Document, error) {
	if format == FormatUnknown {
		format = ParseFormat(name)
	}
	if r == nil {
		return Document{}, apperrors.NewExtractionError(name, string(format), apperrors.ErrFileMissing, "")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, apperrors.NewExtractionError(name, string(format), apperrors.ErrFileMissing, err.Error())
	}
	return Document{Name: name, Format: format, Data: data}, nil
}

// PDFTextReader 从 PDF 字节中读取文字层
type PDFTextReader interface {
	ReadText(ctx context.Context, data []byte, uri string) (string, error)
}

// Extractor 按格式把文档转换为纯文本
type Extractor struct {
	pdf    PDFTextReader
	logger zerolog.Logger
}

type Option func(*Extractor)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func NewExtractor(pdfReader PDFTextReader, opts ...Option) *Extractor {
	e := &Extractor{pdf: pdfReader, logger: logger.Named("extractor")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract 返回文档文本。
// PDF 没有文字层时返回 ("", nil)，由调用方决定是否降级；其余格式的失败均为 ExtractionError。
func (e *Extractor) Extract(ctx context.Context, doc Document) (string, error) {
	start := time.Now()
	text, err := e.extract(ctx, doc)

	ev := e.logger.Debug()
	if err != nil {
		ev = e.logger.Warn().Err(err)
	}
	ev.Str("file", doc.Name).
		Str("format", string(doc.Format)).
		Int("bytes", len(doc.Data)).
		Int("chars", len([]rune(text))).
		Dur("elapsed", time.Since(start)).
		Msg("文本提取完成")
	return text, err
}

func (e *Extractor) extract(ctx context.Context, doc Document) (string, error) {
	switch doc.Format {
	case FormatText:
		return extractPlain(doc)
	case FormatJSON:
		return extractJSON(doc)
	case FormatDocx:
		return extractDocx(doc)
	case FormatDoc:
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrLegacyFormat,
			"请将文件另存为 .docx、.pdf 或 .txt 后重新上传")
	case FormatPDF:
		return e.extractPDF(ctx, doc)
	default:
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrUnsupportedFormat,
			"支持的格式: .txt .json .docx .pdf")
	}
}

func extractPlain(doc Document) (string, error) {
	content := string(doc.Data)
	if strings.TrimSpace(content) == "" {
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrEmptyContent, "")
	}
	return content, nil
}

func extractJSON(doc Document) (string, error) {
	var v any
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrMalformedDocument, err.Error())
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrMalformedDocument, err.Error())
	}
	out := strings.TrimSpace(buf.String())
	if out == "" || out == "null" || out == "{}" || out == "[]" {
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrEmptyContent, "")
	}
	return out, nil
}

func extractDocx(doc Document) (string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(doc.Data))
	if err != nil {
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrMalformedDocument,
			fmt.Sprintf("无法读取 Word 文档(%v)，请用 Word 重新另存为 .docx 或导出 PDF 后上传", err))
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrEmptyContent,
			"未从 Word 文档中提取到文字，请用 Word 重新另存为 .docx 或导出 PDF 后上传")
	}
	return text, nil
}

func (e *Extractor) extractPDF(ctx context.Context, doc Document) (string, error) {
	if e.pdf == nil {
		return "", fmt.Errorf("未配置 PDF 解析器")
	}
	text, err := e.pdf.ReadText(ctx, doc.Data, doc.Name)
	if err != nil {
		return "", apperrors.NewExtractionError(doc.Name, string(doc.Format), apperrors.ErrMalformedDocument, err.Error())
	}
	return strings.TrimSpace(text), nil
}
