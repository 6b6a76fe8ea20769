package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// InitialCursor は一度もエクスポートしていないテーブルの開始位置。
var InitialCursor = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Cursor はテーブルごとのエクスポート済み位置。
// (At, Seq) より後の行が次回の対象になる。
type Cursor struct {
	At  time.Time `json:"cursor"`
	Seq int64     `json:"seq"`
}

// State はステートファイルの内容。
type State struct {
	Tables map[string]Cursor `json:"tables"`
}

// cursorFor は指定テーブルのカーソルを返す。未記録の場合は初期位置。
func (s *State) cursorFor(table string) Cursor {
	if c, ok := s.Tables[table]; ok {
		return c
	}
	return Cursor{At: InitialCursor}
}

// LoadState はステートファイルを読み込む。ファイルが存在しない場合は空の状態を返す。
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &State{Tables: map[string]Cursor{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ステートファイルの読み込みに失敗しました: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("ステートファイルの解析に失敗しました: %w", err)
	}
	if st.Tables == nil {
		st.Tables = map[string]Cursor{}
	}
	return &st, nil
}

// SaveState はステートファイルを一時ファイル経由で置き換える。
func SaveState(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("ステートのエンコードに失敗しました: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ステートディレクトリの作成に失敗しました: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ステートファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("ステートファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}
