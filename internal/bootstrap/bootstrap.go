package bootstrap // 按配置装配存储、模型与业务服务，供各子命令共用

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/constants"
	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/llm"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/ocr"
	"ai-recruit-go/internal/outbox"
	"ai-recruit-go/internal/parser"
	"ai-recruit-go/internal/processor"
	"ai-recruit-go/internal/storage"
	"ai-recruit-go/internal/worker"
)

// App 一个进程内共享的组件
type App struct {
	Config    *config.Config
	Storage   *storage.Storage
	Processor *processor.ResumeProcessor
	Matcher   *processor.MatchService
	Batch     *processor.BatchMatcher
	logger    zerolog.Logger
}

// New 初始化存储并装配解析、匹配服务。失败时已打开的连接会被关闭
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Named("bootstrap")

	st, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Storage: st, logger: log}

	if err := a.buildServices(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildServices(ctx context.Context) error {
	cfg := a.Config
	factory := llm.NewFactory(cfg, logger.Named("llm"))

	parseCompleter, err := factory.Completer(ctx, constants.TaskResumeParse)
	if err != nil {
		return err
	}
	detectCompleter, err := factory.Completer(ctx, constants.TaskMultiDetect)
	if err != nil {
		return err
	}
	matchCompleter, err := factory.Completer(ctx, constants.TaskMatchEval)
	if err != nil {
		return err
	}

	pdfReader, err := extract.NewEinoPDFReader(ctx, 30*time.Second)
	if err != nil {
		return fmt.Errorf("初始化PDF解析器失败: %w", err)
	}
	extractor := extract.NewExtractor(pdfReader, extract.WithLogger(logger.Named("extract")))

	fallbackOpts := []extract.FallbackOption{extract.WithFallbackLogger(logger.Named("scanned_fallback"))}
	if engine := a.ocrEngine(); engine != nil {
		fallbackOpts = append(fallbackOpts, extract.WithOCR(engine))
	}
	fallback := extract.NewScannedFallback(extract.LedongPDFReader{}, fallbackOpts...)

	validator := parser.NewResumeValidator().WithLogger(logger.Named("validator"))
	resumeParser := parser.NewResumeParser(parseCompleter, extractor, fallback,
		parser.WithParserLogger(logger.Named("resume_parser")), parser.WithValidator(validator))
	detector := parser.NewMultiResumeDetector(detectCompleter,
		parser.WithSplitCompleter(parseCompleter),
		parser.WithDetectorLogger(logger.Named("multi_detector")))

	db := a.Storage.MySQL
	a.Processor = processor.NewResumeProcessor(resumeParser, detector,
		processor.WithResumeValidator(validator),
		processor.WithCandidateStore(db))

	var matchOpts []processor.MatchServiceOption
	if ttl := config.GetDuration(cfg.Matching.LockTTL, 0); ttl > 0 && a.Storage.Redis != nil {
		matchOpts = append(matchOpts, processor.WithPairLock(a.Storage.Redis, ttl))
	}
	a.Matcher = processor.NewMatchService(db, db, db,
		parser.NewMatchEvaluator(matchCompleter, logger.Named("match_evaluator")), matchOpts...)
	a.Batch = processor.NewBatchMatcher(a.Matcher, db, db,
		processor.WithWorkers(cfg.Matching.Workers),
		processor.WithDefaultLimit(cfg.Matching.DefaultLimit))
	return nil
}

// ocrEngine 未启用或配置不完整时返回 nil，扫描件落到待人工处理
func (a *App) ocrEngine() extract.OCREngine {
	c := a.Config.OCR
	if !c.Enabled || c.Provider != "vision" {
		return nil
	}
	vision, err := ocr.NewOpenAIVision(c.APIKey, c.Model, c.APIURL)
	if err != nil {
		a.logger.Warn().Err(err).Msg("初始化OCR引擎失败，扫描件将转人工处理")
		return nil
	}
	return ocr.NewVisionEngine(ocr.FitzRenderer{}, vision, c.MaxPages)
}

// Documents 对象存储未配置时返回 nil 接口
func (a *App) Documents() storage.DocumentStore {
	if a.Storage.MinIO == nil {
		return nil
	}
	return a.Storage.MinIO
}

// ParseWorker 需要对象存储；Redis 可用时按任务加锁
func (a *App) ParseWorker() (*worker.ParseWorker, error) {
	docs := a.Documents()
	if docs == nil {
		return nil, fmt.Errorf("对象存储未配置，无法运行解析 worker")
	}
	var opts []worker.Option
	if a.Storage.Redis != nil {
		opts = append(opts, worker.WithJobLock(a.Storage.Redis, 0))
	}
	return worker.NewFromConfig(&a.Config.RabbitMQ, a.Storage.MySQL, docs, a.Processor, opts...), nil
}

// Relay RabbitMQ 未连接时返回 nil
func (a *App) Relay() *outbox.MessageRelay {
	if a.Storage.RabbitMQ == nil {
		return nil
	}
	return outbox.NewMessageRelay(a.Storage.MySQL.DB(), a.Storage.RabbitMQ,
		outbox.WithLogger(logger.Named("outbox_relay")))
}

func (a *App) Close() {
	a.Storage.Close()
}
