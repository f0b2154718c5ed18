package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"resume-matcher/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖。
// Workspace 和 History 总是可用，其余组件只在配置后启用。
type Storage struct {
	Workspace *Workspace
	History   *FileHistory

	// 筛选完成通知，未配置 RabbitMQ 时为 nil
	Events EventPublisher

	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis

	logger zerolog.Logger
}

// NewStorage 创建存储管理器。可选组件初始化失败时记录警告并跳过。
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	s := &Storage{logger: logger}
	var err error

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(&cfg.MinIO, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MinIO失败，跳过原件归档")
		}
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("初始化Redis失败，跳过向量缓存和历史锁")
		} else {
			logger.Info().Str("address", cfg.Redis.Address).Msg("Redis客户端初始化成功")
		}
	}

	if cfg.MySQL.Host != "" {
		s.MySQL, err = NewMySQL(&cfg.MySQL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MySQL失败，跳过历史镜像")
		}
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败，跳过事件通知")
		} else {
			events, evErr := NewScreeningEvents(s.RabbitMQ, &cfg.RabbitMQ)
			if evErr != nil {
				logger.Warn().Err(evErr).Msg("声明筛选事件拓扑失败，跳过事件通知")
			} else {
				s.Events = events
			}
		}
	}

	wsOpts := []WorkspaceOption{WithWorkspaceLogger(logger)}
	if s.MinIO != nil {
		wsOpts = append(wsOpts, WithObjectMirror(s.MinIO))
	}
	s.Workspace, err = NewWorkspace(cfg.Workspace.Dir, wsOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	histOpts := []FileHistoryOption{WithHistoryLogger(logger)}
	if s.Redis != nil {
		histOpts = append(histOpts, WithHistoryLock(s.Redis, s.Redis.HistoryLockTTL()))
	}
	if s.MySQL != nil {
		histOpts = append(histOpts, WithHistoryMirror(NewMySQLHistory(s.MySQL)))
	}
	s.History = NewFileHistory(cfg.HistoryPath(), histOpts...)

	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.History != nil {
		_ = s.History.Close()
	}
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
