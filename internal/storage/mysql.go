package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-matcher/internal/config"
	"resume-matcher/internal/storage/models"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"
	"resume-matcher/pkg/utils"
)

var mysqlTracer = otel.Tracer("resume-matcher/storage/mysql")

type spanContextKey struct{}

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: mysqlTracer,
		dbName: dbName,
	}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("INSERT")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after); err != nil {
		return err
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, spanContextKey{}, span)
	}
}

func (p *GormTracingPlugin) after(db *gorm.DB) {
	span, ok := db.Statement.Context.Value(spanContextKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		tracing.RecordErrorWithInfo(span, db.Error, tracing.ErrorTypeDB,
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())))
		return
	}
	span.SetStatus(codes.Ok, "")
}

// MySQL 筛选历史的关系库镜像
type MySQL struct {
	db     *gorm.DB
	cfg    *config.MySQLConfig
	logger zerolog.Logger
}

// NewMySQL 创建MySQL客户端并迁移表结构
func NewMySQL(cfg *config.MySQLConfig, logger zerolog.Logger) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	m, err := newMySQLFromDB(db, cfg, logger)
	if err != nil {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m.logger.Info().Str("database", cfg.Database).Msg("成功连接到MySQL并完成表结构迁移")
	return m, nil
}

func newMySQLFromDB(db *gorm.DB, cfg *config.MySQLConfig, logger zerolog.Logger) (*MySQL, error) {
	m := &MySQL{
		db:     db,
		cfg:    cfg,
		logger: logger.With().Str("component", "mysql").Logger(),
	}
	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}
	if err := m.autoMigrateSchema(); err != nil {
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}
	return m, nil
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 1:
		return gormlogger.Silent
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Error
	}
}

// autoMigrateSchema 迁移时关闭SQL日志
func (m *MySQL) autoMigrateSchema() error {
	silentLogger := gormlogger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent, IgnoreRecordNotFoundError: true},
	)
	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})
	if err := silentDB.AutoMigrate(&models.ScreeningRun{}, &models.ScreeningResult{}); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// InsertRun 在一个事务中写入运行记录和逐条结果
func (m *MySQL) InsertRun(ctx context.Context, record types.HistoryRecord) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.InsertRun", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("run.id", record.RunID.String()), attribute.Int("run.results", len(record.Results)))

	run := models.ScreeningRun{
		RunID:       record.RunID.String(),
		RunAt:       record.Timestamp,
		JDTitle:     record.JDTitle,
		JDText:      record.JDText,
		ResultCount: len(record.Results),
		ResultsJSON: utils.ToJSON(record.Results),
	}
	rows := make([]models.ScreeningResult, 0, len(record.Results))
	for _, r := range record.Results {
		if r.TotalScore > run.TopScore {
			run.TopScore = r.TotalScore
		}
		rows = append(rows, models.ScreeningResult{
			RunID:           run.RunID,
			CandidateName:   r.CandidateName,
			SuggestedRole:   r.SuggestedRole,
			TotalScore:      r.TotalScore,
			ATSScore:        r.ATSScore,
			SkillMatchScore: r.SkillMatchScore,
			EducationScore:  r.EducationScore,
			MatchPriority:   string(r.MatchPriority),
			SourcePath:      r.Path,
		})
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 100).Error
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("写入筛选记录失败: %w", err)
	}
	return nil
}

// ListRuns 按写入顺序返回全部运行记录
func (m *MySQL) ListRuns(ctx context.Context) ([]types.HistoryRecord, error) {
	var runs []models.ScreeningRun
	if err := m.db.WithContext(ctx).Order("id ASC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询筛选记录失败: %w", err)
	}
	return runsToRecords(runs)
}

func runsToRecords(runs []models.ScreeningRun) ([]types.HistoryRecord, error) {
	records := make([]types.HistoryRecord, 0, len(runs))
	for _, run := range runs {
		rec := types.HistoryRecord{
			Timestamp: run.RunAt,
			JDTitle:   run.JDTitle,
			JDText:    run.JDText,
			Results:   []types.ScoreResult{},
		}
		if run.RunID != "" {
			id, err := uuid.FromString(run.RunID)
			if err != nil {
				return nil, fmt.Errorf("解析 run_id %q 失败: %w", run.RunID, err)
			}
			rec.RunID = id
		}
		if err := models.DecodeJSON(run.ResultsJSON, &rec.Results); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
