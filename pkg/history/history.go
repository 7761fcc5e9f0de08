// Package history 把每次匹配运行记录到 SQLite 数据库
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/zoeyai/featmatch/pkg/pipeline"
)

// 运行状态
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("run not found")

// Run 一次运行的记录
type Run struct {
	ID              string    `gorm:"primaryKey;type:varchar(36);not null"`
	Variant         string    `gorm:"type:varchar(32);not null;index"`
	Source          string    `gorm:"type:text"`
	Target          string    `gorm:"type:text"`
	Output          string    `gorm:"type:text"`
	SourceKeypoints int       `gorm:"type:integer"`
	TargetKeypoints int       `gorm:"type:integer"`
	RawCandidates   int       `gorm:"type:integer"`
	Accepted        int       `gorm:"type:integer"`
	Bytes           int64     `gorm:"type:integer"`
	ElapsedMs       float64   `gorm:"type:real"`
	Status          string    `gorm:"type:varchar(16);not null;index"`
	FailedStage     string    `gorm:"type:varchar(16)"`
	ExitCode        int       `gorm:"type:integer"`
	Error           string    `gorm:"type:text"`
	StartedAt       time.Time `gorm:"index"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// Store 运行记录存储，可被多个 goroutine 同时使用
type Store struct {
	db *gorm.DB
}

// Open 打开或创建数据库并迁移表结构
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开运行记录数据库失败: %w", err)
	}

	// SQLite 同一时间只允许一个写连接，批量模式下由连接池串行化写入
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Run{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("迁移运行记录表失败: %w", err)
	}
	return &Store{db: db}, nil
}

// Record 记录一次运行，实现 pipeline.Recorder
func (s *Store) Record(ctx context.Context, sum *pipeline.Summary, runErr error) error {
	if sum == nil {
		return errors.New("summary 为空")
	}

	run := Run{
		ID:              sum.RunID,
		Variant:         sum.Variant,
		Source:          sum.Source,
		Target:          sum.Target,
		Output:          sum.Output,
		SourceKeypoints: sum.Stats.SourceKeypoints,
		TargetKeypoints: sum.Stats.TargetKeypoints,
		RawCandidates:   sum.Stats.RawCandidates,
		Accepted:        sum.Stats.Accepted,
		Bytes:           sum.Bytes,
		ElapsedMs:       float64(sum.Elapsed.Microseconds()) / 1000,
		Status:          StatusOK,
		ExitCode:        pipeline.ExitCode(runErr),
		StartedAt:       sum.StartedAt,
	}
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
		if sum.FailedStage != 0 {
			run.FailedStage = sum.FailedStage.String()
		}
	}

	// 取消的运行也要落库，不使用可能已取消的 ctx
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(&run).Error; err != nil {
		return fmt.Errorf("写入运行记录失败: %w", err)
	}
	return nil
}

// List 按时间倒序返回最近的记录，limit <= 0 时返回全部
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("rowid DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return runs, nil
}

// Get 按 ID 查询记录
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return &run, nil
}

// VariantStats 单个变体的汇总
type VariantStats struct {
	Variant     string
	Runs        int64
	Failed      int64
	AvgAccepted float64
}

// Summarize 按变体汇总运行次数、失败次数与平均接受匹配数
func (s *Store) Summarize(ctx context.Context) ([]VariantStats, error) {
	var out []VariantStats
	err := s.db.WithContext(ctx).Model(&Run{}).
		Select("variant, COUNT(*) AS runs, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS failed, AVG(accepted) AS avg_accepted", StatusFailed).
		Group("variant").
		Order("variant").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("汇总运行记录失败: %w", err)
	}
	return out, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
