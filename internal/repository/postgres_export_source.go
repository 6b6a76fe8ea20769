package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// exportCursorColumns はエクスポート対象テーブルとカーソル列の対応。
// applicationsは更新のたびにupdated_atが進むため、更新行も再エクスポートされる。
var exportCursorColumns = []struct {
	table  string
	column string
}{
	{"applications", "updated_at"},
	{"application_status_events", "changed_at"},
	{"application_followups", "followup_at"},
	{"application_events", "created_at"},
}

// PostgresExportSource はPostgreSQLのテーブルを増分で読み出すエクスポート元。
//
// カーソル列の一部はアプリケーション側の時計で書き込まれるため、
// コミットが遅れた行や時計のずれた別インスタンスの行は保存済みカーソルより前の値を持ちうる。
// DBの現在時刻からsettleより新しい行は読まず、その間に書き込みが揃うのを待つ。
type PostgresExportSource struct {
	db     *sql.DB
	settle time.Duration
}

// NewPostgresExportSource はPostgresExportSourceを生成する。
func NewPostgresExportSource(db *sql.DB, settle time.Duration) *PostgresExportSource {
	return &PostgresExportSource{db: db, settle: settle}
}

// Tables はエクスポート対象のテーブル名を返す。
func (s *PostgresExportSource) Tables() []string {
	tables := make([]string, len(exportCursorColumns))
	for i, tc := range exportCursorColumns {
		tables[i] = tc.table
	}
	return tables
}

// ReadSince はカーソル列が (cursor, seq) より後で、DB時刻のsettle前までの行を昇順で最大limit件返す。
// 行はrow_to_jsonでJSONに変換して返す。
func (s *PostgresExportSource) ReadSince(ctx context.Context, table string, cursor time.Time, seq int64, limit int) ([]ExportRow, error) {
	column, ok := cursorColumn(table)
	if !ok {
		return nil, fmt.Errorf("エクスポート対象外のテーブルです: %s", table)
	}

	query := fmt.Sprintf(
		`SELECT t.%[1]s, t.seq, row_to_json(t)::text
		 FROM %[2]s t
		 WHERE (t.%[1]s, t.seq) > ($1, $2)
		   AND t.%[1]s <= now() - make_interval(secs => $4)
		 ORDER BY t.%[1]s ASC, t.seq ASC
		 LIMIT $3`,
		column, table,
	)
	rows, err := s.db.QueryContext(ctx, query, cursor, seq, limit, s.settle.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s の増分読み出しに失敗しました: %w", table, err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		var data string
		if err := rows.Scan(&row.Cursor, &row.Seq, &data); err != nil {
			return nil, fmt.Errorf("%s の行の読み取りに失敗しました: %w", table, err)
		}
		row.Data = []byte(data)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s の走査に失敗しました: %w", table, err)
	}
	return out, nil
}

func cursorColumn(table string) (string, bool) {
	for _, tc := range exportCursorColumns {
		if tc.table == table {
			return tc.column, true
		}
	}
	return "", false
}

// compile-time interface check
var _ ExportSource = (*PostgresExportSource)(nil)
