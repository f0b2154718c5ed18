package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"resume-matcher/internal/constants"
	"resume-matcher/internal/types"
)

// HistoryStore 筛选历史存储
type HistoryStore interface {
	Load(ctx context.Context) ([]types.HistoryRecord, error)
	Append(ctx context.Context, record types.HistoryRecord) error
}

// HistoryLocker 跨进程的历史写锁，*Redis 实现了该接口
type HistoryLocker interface {
	AcquireLockWait(ctx context.Context, lockKey string, expiration, wait time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

var (
	_ HistoryStore  = (*FileHistory)(nil)
	_ HistoryStore  = (*MySQLHistory)(nil)
	_ HistoryLocker = (*Redis)(nil)
)

// ErrHistoryClosed 写入协程已停止
var ErrHistoryClosed = errors.New("history store is closed")

type appendRequest struct {
	ctx    context.Context
	record types.HistoryRecord
	result chan error
}

// FileHistory 以 JSON 数组保存历史记录。
// 所有追加都经过同一个写协程，文件先写入临时文件再重命名覆盖。
type FileHistory struct {
	path     string
	locker   HistoryLocker
	lockTTL  time.Duration
	lockWait time.Duration
	mirror   HistoryStore
	logger   zerolog.Logger

	requests  chan appendRequest
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// FileHistoryOption FileHistory 的可选配置
type FileHistoryOption func(*FileHistory)

// WithHistoryLock 在读改写期间持有 Redis 锁
func WithHistoryLock(locker HistoryLocker, ttl time.Duration) FileHistoryOption {
	return func(h *FileHistory) {
		h.locker = locker
		if ttl > 0 {
			h.lockTTL = ttl
			h.lockWait = ttl
		}
	}
}

// WithHistoryMirror 每条记录写入文件后再写入镜像，镜像失败只记日志
func WithHistoryMirror(mirror HistoryStore) FileHistoryOption {
	return func(h *FileHistory) {
		h.mirror = mirror
	}
}

// WithHistoryLogger 设置日志
func WithHistoryLogger(logger zerolog.Logger) FileHistoryOption {
	return func(h *FileHistory) {
		h.logger = logger
	}
}

// NewFileHistory 创建历史存储并启动写协程，使用完毕需调用 Close
func NewFileHistory(path string, opts ...FileHistoryOption) *FileHistory {
	h := &FileHistory{
		path:     path,
		lockTTL:  10 * time.Second,
		lockWait: 10 * time.Second,
		logger:   zerolog.Nop(),
		requests: make(chan appendRequest),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("component", "history").Str("path", path).Logger()
	go h.writeLoop()
	return h
}

// Path 历史文件路径
func (h *FileHistory) Path() string {
	return h.path
}

// Load 读取全部记录，文件不存在时返回空列表
func (h *FileHistory) Load(_ context.Context) ([]types.HistoryRecord, error) {
	return readHistoryFile(h.path)
}

// Append 追加一条记录，阻塞到写入完成
func (h *FileHistory) Append(ctx context.Context, record types.HistoryRecord) error {
	req := appendRequest{ctx: ctx, record: record, result: make(chan error, 1)}
	select {
	case h.requests <- req:
	case <-h.done:
		return ErrHistoryClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止写协程，已提交的追加会先完成
func (h *FileHistory) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
	})
	<-h.stopped
	return nil
}

func (h *FileHistory) writeLoop() {
	defer close(h.stopped)
	for {
		select {
		case req := <-h.requests:
			req.result <- h.appendLocked(req.ctx, req.record)
		case <-h.done:
			return
		}
	}
}

func (h *FileHistory) appendLocked(ctx context.Context, record types.HistoryRecord) error {
	if h.locker != nil {
		token, err := h.locker.AcquireLockWait(ctx, constants.KeyHistoryLock, h.lockTTL, h.lockWait)
		if err != nil {
			return fmt.Errorf("获取历史写锁失败: %w", err)
		}
		defer func() {
			// 请求 ctx 可能已结束，释放锁不受其影响
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if _, err := h.locker.ReleaseLock(releaseCtx, constants.KeyHistoryLock, token); err != nil {
				h.logger.Warn().Err(err).Msg("释放历史写锁失败")
			}
		}()
	}

	records, err := readHistoryFile(h.path)
	if err != nil {
		return err
	}
	if record.Results == nil {
		record.Results = []types.ScoreResult{}
	}
	records = append(records, record)

	if err := writeHistoryFile(h.path, records); err != nil {
		return err
	}
	h.logger.Debug().Int("records", len(records)).Msg("历史记录已写入")

	if h.mirror != nil {
		if err := h.mirror.Append(ctx, record); err != nil {
			h.logger.Warn().Err(err).Str("run_id", record.RunID.String()).Msg("写入历史镜像失败")
		}
	}
	return nil
}

func readHistoryFile(path string) ([]types.HistoryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []types.HistoryRecord{}, nil
		}
		return nil, fmt.Errorf("读取历史文件失败: %w", err)
	}
	records := []types.HistoryRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("解析历史文件 %s 失败: %w", path, err)
	}
	return records, nil
}

func writeHistoryFile(path string, records []types.HistoryRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化历史记录失败: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建历史目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时历史文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入临时历史文件失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("同步临时历史文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时历史文件失败: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("替换历史文件失败: %w", err)
	}
	return nil
}

// MySQLHistory 以 screening_runs 表为后端的历史存储，用作文件历史的镜像
type MySQLHistory struct {
	db *MySQL
}

// NewMySQLHistory 包装 MySQL 客户端
func NewMySQLHistory(db *MySQL) *MySQLHistory {
	return &MySQLHistory{db: db}
}

// Load 按写入顺序返回记录
func (h *MySQLHistory) Load(ctx context.Context) ([]types.HistoryRecord, error) {
	return h.db.ListRuns(ctx)
}

// Append 写入一条记录
func (h *MySQLHistory) Append(ctx context.Context, record types.HistoryRecord) error {
	return h.db.InsertRun(ctx, record)
}
