// Package export はテーブルの増分エクスポートを提供する。
// テーブルごとにカーソル列で前回位置より後の行を読み出し、
// <dir>/<table>.jsonl に追記してステートファイルのカーソルを進める。
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hitoshi/jobtrail/internal/repository"
)

// MetricsRecorder はエクスポート結果を記録するインターフェース。
type MetricsRecorder interface {
	ExportRows(table string, count int)
	ExportDuration(d time.Duration)
}

// Config はExporterの設定。
type Config struct {
	Dir            string // 出力ディレクトリ
	StateFile      string // 空の場合は <Dir>/state.json
	BatchSize      int    // 1回の読み出し件数（デフォルト: 500）
	MaxConcurrency int    // 同時にエクスポートするテーブル数（デフォルト: 4）
}

// Exporter は全テーブルの増分エクスポートを行う。
type Exporter struct {
	source         repository.ExportSource
	metrics        MetricsRecorder
	logger         *slog.Logger
	dir            string
	stateFile      string
	batchSize      int
	maxConcurrency int
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewExporter はExporterの新しいインスタンスを生成する。
func NewExporter(source repository.ExportSource, metrics MetricsRecorder, logger *slog.Logger, cfg Config) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(cfg.Dir, "state.json")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Exporter{
		source:         source,
		metrics:        metrics,
		logger:         logger,
		dir:            cfg.Dir,
		stateFile:      cfg.StateFile,
		batchSize:      cfg.BatchSize,
		maxConcurrency: cfg.MaxConcurrency,
		sleep:          sleepContext,
	}
}

// TableReport はテーブル1つ分のエクスポート結果。
type TableReport struct {
	Table  string
	Rows   int
	Cursor Cursor
	Err    error
}

// Run は全テーブルを1回エクスポートする。
// 一部のテーブルが失敗しても成功したテーブルのカーソルは保存する。
func (e *Exporter) Run(ctx context.Context) ([]TableReport, error) {
	start := time.Now()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}
	state, err := LoadState(e.stateFile)
	if err != nil {
		return nil, err
	}

	tables := e.source.Tables()
	reports := make([]TableReport, len(tables))

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, e.maxConcurrency)
	var wg sync.WaitGroup
	for i, table := range tables {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, table string, from Cursor) {
			defer wg.Done()
			defer func() { <-sem }()
			reports[i] = e.exportTable(ctx, table, from)
		}(i, table, state.cursorFor(table))
	}
	wg.Wait()

	var errs []error
	total := 0
	for _, r := range reports {
		state.Tables[r.Table] = r.Cursor
		total += r.Rows
		if e.metrics != nil {
			e.metrics.ExportRows(r.Table, r.Rows)
		}
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Table, r.Err))
		}
	}

	if err := SaveState(e.stateFile, state); err != nil {
		errs = append(errs, err)
	}

	duration := time.Since(start)
	if e.metrics != nil {
		e.metrics.ExportDuration(duration)
	}
	e.logger.Info("エクスポートが完了しました",
		slog.Int("table_count", len(tables)),
		slog.Int("row_count", total),
		slog.Int("error_count", len(errs)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return reports, errors.Join(errs...)
}

// exportTable は1テーブルをバッチごとに読み出して追記する。
// 返すカーソルは最後に書き込みに成功した行の位置。
func (e *Exporter) exportTable(ctx context.Context, table string, from Cursor) TableReport {
	report := TableReport{Table: table, Cursor: from}

	f, err := os.OpenFile(filepath.Join(e.dir, table+".jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		report.Err = fmt.Errorf("出力ファイルのオープンに失敗しました: %w", err)
		return report
	}
	defer f.Close()

	for {
		if err := ctx.Err(); err != nil {
			report.Err = err
			return report
		}

		rows, err := e.readWithRetry(ctx, table, report.Cursor)
		if err != nil {
			report.Err = err
			return report
		}
		if len(rows) == 0 {
			return report
		}

		var buf []byte
		for _, row := range rows {
			buf = append(buf, row.Data...)
			buf = append(buf, '\n')
		}
		if _, err := f.Write(buf); err != nil {
			report.Err = fmt.Errorf("出力ファイルへの書き込みに失敗しました: %w", err)
			return report
		}

		last := rows[len(rows)-1]
		report.Cursor = Cursor{At: last.Cursor.UTC(), Seq: last.Seq}
		report.Rows += len(rows)

		if len(rows) < e.batchSize {
			return report
		}
	}
}
