package storage

import (
	"context"
	"fmt"

	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/logger"
)

// Storage 聚合所有外部存储依赖；Redis、MinIO、RabbitMQ 未配置时为 nil
type Storage struct {
	MySQL    *MySQL
	Redis    *Redis
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
}

// NewStorage 初始化存储组件。MySQL 必需，其余组件连接失败只记录警告
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	log := logger.Named("storage")

	s := &Storage{}
	var err error
	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	if cfg.Redis.Address != "" {
		if s.Redis, err = NewRedis(&cfg.Redis); err != nil {
			log.Warn().Err(err).Msg("初始化Redis失败，匹配将不加锁")
			s.Redis = nil
		}
	}
	if cfg.MinIO.Endpoint != "" {
		if s.MinIO, err = NewMinIO(ctx, &cfg.MinIO); err != nil {
			log.Warn().Err(err).Msg("初始化MinIO失败，异步上传不可用")
			s.MinIO = nil
		}
	}
	if cfg.RabbitMQ.URL != "" {
		if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ); err != nil {
			log.Warn().Err(err).Msg("初始化RabbitMQ失败，异步解析不可用")
			s.RabbitMQ = nil
		}
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := logger.Named("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
}
