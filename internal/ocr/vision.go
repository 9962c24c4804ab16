// Package ocr 提供扫描件降级流程可选接入的 OCR 引擎：
// 用 go-fitz 把 PDF 渲染为图片，再交给支持视觉输入的模型转写文字。
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared/constant"
	"github.com/rs/zerolog"

	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/logger"
)

const defaultMaxPages = 3

// PageRenderer 把 PDF 渲染为 JPEG 页面
type PageRenderer interface {
	Render(pdf []byte, maxPages int) ([][]byte, error)
}

// Transcriber 把页面图片转写为纯文本
type Transcriber interface {
	Transcribe(ctx context.Context, pages [][]byte) (string, error)
}

// FitzRenderer 基于 MuPDF
type FitzRenderer struct {
	Quality int
}

func (r FitzRenderer) Render(pdf []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	quality := r.Quality
	if quality <= 0 {
		quality = 85
	}

	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i, err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i, err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}

// OpenAIVision 通过 OpenAI 兼容接口的视觉模型转写
type OpenAIVision struct {
	client    *openai.Client
	modelName string
}

func NewOpenAIVision(apiKey, modelName, baseURL string) (*OpenAIVision, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ocr api key is required")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = "gpt-4o"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIVision{client: &client, modelName: modelName}, nil
}

const transcribePrompt = "请逐字转写以下简历图片中的全部文字，保持原有的阅读顺序，只输出纯文本，不要添加任何解释。"

func (v *OpenAIVision) Transcribe(ctx context.Context, pages [][]byte) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{{
		OfText: &openai.ChatCompletionContentPartTextParam{
			Type: constant.Text("text"),
			Text: transcribePrompt,
		},
	}}
	for _, p := range pages {
		dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(p)
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				Type: constant.ImageURL("image_url"),
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					URL:    dataURL,
					Detail: "high",
				},
			},
		})
	}

	completion, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(v.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: parts,
				},
			},
		}},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai vision api error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no response from openai vision")
	}
	return completion.Choices[0].Message.Content, nil
}

// VisionEngine 实现 extract.OCREngine
type VisionEngine struct {
	renderer    PageRenderer
	transcriber Transcriber
	maxPages    int
	logger      zerolog.Logger
}

func NewVisionEngine(renderer PageRenderer, transcriber Transcriber, maxPages int) *VisionEngine {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &VisionEngine{
		renderer:    renderer,
		transcriber: transcriber,
		maxPages:    maxPages,
		logger:      logger.Named("ocr"),
	}
}

func (e *VisionEngine) Recognize(ctx context.Context, doc extract.Document) (string, error) {
	pages, err := e.renderer.Render(doc.Data, e.maxPages)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("pdf %s has no pages", doc.Name)
	}
	text, err := e.transcriber.Transcribe(ctx, pages)
	if err != nil {
		return "", err
	}
	e.logger.Info().Str("file", doc.Name).Int("pages", len(pages)).Int("chars", len([]rune(text))).Msg("OCR 转写完成")
	return strings.TrimSpace(text), nil
}

var _ extract.OCREngine = (*VisionEngine)(nil)
