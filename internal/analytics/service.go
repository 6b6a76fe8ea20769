package analytics

import (
	"context"

	"github.com/hitoshi/jobtrail/internal/model"
)

// Lister は応募一覧を取得するインターフェース。
type Lister interface {
	List(ctx context.Context, status *model.Status) ([]*model.Application, error)
}

// Service は最新のスナップショットを取得して集計する。
type Service struct {
	lister Lister
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(lister Lister) *Service {
	return &Service{lister: lister}
}

// Snapshot はストアから応募一覧を読み直して集計する。キャッシュは持たない。
func (s *Service) Snapshot(ctx context.Context) (*Summary, error) {
	rows, err := s.lister.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	summary := Summarize(rows)
	return &summary, nil
}
