package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/jobtrail/internal/model"
)

func TestPostgresStatusEventRepo_Append(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPostgresStatusEventRepo(db)

	from := model.StatusApplied
	ev := &model.StatusEvent{
		ApplicationID: "app-1",
		FromStatus:    &from,
		ToStatus:      model.StatusOA,
		Source:        "ui",
		ChangedAt:     testNow,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO application_status_events`)).
		WithArgs(sqlmock.AnyArg(), "app-1", "Applied", "OA", "ui", testNow).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	if err := repo.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if ev.ID == "" {
		t.Error("ID should be assigned")
	}
	if ev.Seq != 7 {
		t.Errorf("Seq = %d, want 7", ev.Seq)
	}
}

func TestPostgresStatusEventRepo_Append_CreationEventHasNullFrom(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPostgresStatusEventRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO application_status_events`)).
		WithArgs("ev-1", "app-1", nil, "Applied", "ui", testNow).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(1)))

	ev := &model.StatusEvent{ID: "ev-1", ApplicationID: "app-1", ToStatus: model.StatusApplied, Source: "ui", ChangedAt: testNow}
	if err := repo.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
}

func TestPostgresStatusEventRepo_ListByApplication(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPostgresStatusEventRepo(db)

	later := testNow.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY changed_at ASC, seq ASC`)).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "application_id", "from_status", "to_status", "source", "changed_at"}).
			AddRow("ev-1", int64(1), "app-1", nil, "Applied", "ui", testNow).
			AddRow("ev-2", int64(2), "app-1", "Applied", "Interview", "email", later))

	events, err := repo.ListByApplication(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("ListByApplication returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].FromStatus != nil {
		t.Errorf("first FromStatus = %v, want nil", *events[0].FromStatus)
	}
	if events[1].FromStatus == nil || *events[1].FromStatus != model.StatusApplied {
		t.Errorf("second FromStatus = %v, want Applied", events[1].FromStatus)
	}
	if events[1].ToStatus != model.StatusInterview || events[1].Source != "email" {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestPostgresFollowupRepo_AppendAndList(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPostgresFollowupRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO application_followups`)).
		WithArgs(sqlmock.AnyArg(), "app-1", "email", "sent thank-you", testNow).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY followup_at ASC, seq ASC`)).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "application_id", "channel", "notes", "followup_at"}).
			AddRow("fu-1", int64(3), "app-1", "email", "sent thank-you", testNow))

	log := &model.FollowupLog{ApplicationID: "app-1", Channel: "email", Notes: "sent thank-you", FollowupAt: testNow}
	if err := repo.Append(context.Background(), log); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if log.Seq != 3 {
		t.Errorf("Seq = %d, want 3", log.Seq)
	}

	logs, err := repo.ListByApplication(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("ListByApplication returned error: %v", err)
	}
	if len(logs) != 1 || logs[0].Channel != "email" {
		t.Errorf("logs = %+v", logs)
	}
}
