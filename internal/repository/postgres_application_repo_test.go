package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/jobtrail/internal/model"
)

var applicationColumnNames = []string{
	"id", "company", "company_normalized", "role", "role_level", "status", "status_updated_at",
	"date_applied", "job_url", "location", "notes", "next_followup", "followup_status", "last_followed_up_at",
	"outcome_reason", "rejection_stage", "source_site", "created_at", "updated_at",
}

var (
	testNow     = time.Date(2024, 3, 5, 14, 30, 0, 123456000, time.UTC)
	testApplied = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func newMockDB(t *testing.T) (*PostgresApplicationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMock(t)
	return NewPostgresApplicationRepo(db), mock
}

func applicationRow(id string) []driver.Value {
	return []driver.Value{
		id, "Google, Inc.", "google inc.", "SWE Intern", "Intern", "Applied", testNow,
		testApplied, nil, "Tokyo", nil, nil, "pending", nil,
		nil, nil, "linkedin", testNow, testNow,
	}
}

func TestPostgresApplicationRepo_Create_AssignsIDAndTimestamps(t *testing.T) {
	repo, mock := newMockDB(t)

	next := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	url := "https://careers.example.com/1"
	app := &model.Application{
		Company:           "Google, Inc.",
		CompanyNormalized: "google inc.",
		Role:              "SWE Intern",
		RoleLevel:         model.RoleLevelIntern,
		Status:            model.StatusApplied,
		StatusUpdatedAt:   testNow,
		DateApplied:       testApplied,
		JobURL:            &url,
		NextFollowup:      &next,
		FollowupStatus:    model.FollowupPending,
		SourceSite:        model.SourceLinkedIn,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO applications`)).
		WithArgs(sqlmock.AnyArg(), "Google, Inc.", "google inc.", "SWE Intern", "Intern", "Applied",
			testNow, "2024-03-05", url, nil, nil, "2024-03-12", "pending", nil, nil, "linkedin").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(testNow, testNow))

	if err := repo.Create(context.Background(), app); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if app.ID == "" {
		t.Error("ID should be assigned")
	}
	if !app.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", app.CreatedAt, testNow)
	}
}

func TestPostgresApplicationRepo_Create_WrapsError(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO applications`)).
		WillReturnError(errors.New("check constraint violated"))

	err := repo.Create(context.Background(), &model.Application{ID: "app-1"})
	if err == nil {
		t.Fatal("Create should return an error")
	}
	if err.Error() != "応募の作成に失敗しました: check constraint violated" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestPostgresApplicationRepo_FindByID(t *testing.T) {
	t.Run("見つかった場合はNULL列をnilにする", func(t *testing.T) {
		repo, mock := newMockDB(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM applications WHERE id = $1`)).
			WithArgs("app-1").
			WillReturnRows(sqlmock.NewRows(applicationColumnNames).AddRow(applicationRow("app-1")...))

		app, err := repo.FindByID(context.Background(), "app-1")
		if err != nil {
			t.Fatalf("FindByID returned error: %v", err)
		}
		if app == nil {
			t.Fatal("expected application")
		}
		if app.Status != model.StatusApplied || app.RoleLevel != model.RoleLevelIntern {
			t.Errorf("enums = %q / %q", app.Status, app.RoleLevel)
		}
		if app.JobURL != nil || app.NextFollowup != nil || app.LastFollowedUpAt != nil {
			t.Errorf("NULL columns should map to nil: %+v", app)
		}
		if app.Location == nil || *app.Location != "Tokyo" {
			t.Errorf("Location = %v, want Tokyo", app.Location)
		}
	})

	t.Run("存在しない場合はnil", func(t *testing.T) {
		repo, mock := newMockDB(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM applications WHERE id = $1`)).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(applicationColumnNames))

		app, err := repo.FindByID(context.Background(), "missing")
		if err != nil {
			t.Fatalf("FindByID returned error: %v", err)
		}
		if app != nil {
			t.Errorf("expected nil, got %+v", app)
		}
	})
}

func TestPostgresApplicationRepo_List(t *testing.T) {
	t.Run("ステータスで絞り込む", func(t *testing.T) {
		repo, mock := newMockDB(t)
		status := model.StatusInterview

		mock.ExpectQuery(regexp.QuoteMeta(`FROM applications WHERE status = $1 ORDER BY date_applied DESC, seq DESC`)).
			WithArgs("Interview").
			WillReturnRows(sqlmock.NewRows(applicationColumnNames).
				AddRow(applicationRow("app-2")...).
				AddRow(applicationRow("app-1")...))

		apps, err := repo.List(context.Background(), &status)
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(apps) != 2 || apps[0].ID != "app-2" {
			t.Errorf("apps = %v", apps)
		}
	})

	t.Run("絞り込みなし", func(t *testing.T) {
		repo, mock := newMockDB(t)

		mock.ExpectQuery(`FROM applications ORDER BY date_applied DESC, seq DESC`).
			WithoutArgs().
			WillReturnRows(sqlmock.NewRows(applicationColumnNames))

		apps, err := repo.List(context.Background(), nil)
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(apps) != 0 {
			t.Errorf("apps = %v, want empty", apps)
		}
	})
}

func TestPostgresApplicationRepo_ListFollowupsDue(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`next_followup <= $1::date AND followup_status = 'pending'`)).
		WithArgs("2024-03-12").
		WillReturnRows(sqlmock.NewRows(applicationColumnNames).AddRow(applicationRow("app-1")...))

	apps, err := repo.ListFollowupsDue(context.Background(), time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListFollowupsDue returned error: %v", err)
	}
	if len(apps) != 1 {
		t.Errorf("apps = %d, want 1", len(apps))
	}
}

func TestPostgresApplicationRepo_Update_BuildsSetClause(t *testing.T) {
	repo, mock := newMockDB(t)

	company := "Alphabet"
	notes := ""
	patch := model.ApplicationPatch{
		Company:           &company,
		Notes:             &notes,
		ClearNextFollowup: true,
	}

	mock.ExpectQuery(regexp.QuoteMeta(
		`UPDATE applications SET company = $2, company_normalized = $3, notes = $4, next_followup = NULL, updated_at = now() WHERE id = $1 RETURNING`,
	)).
		WithArgs("app-1", "Alphabet", "alphabet", nil).
		WillReturnRows(sqlmock.NewRows(applicationColumnNames).AddRow(applicationRow("app-1")...))

	app, err := repo.Update(context.Background(), "app-1", patch, "alphabet")
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if app == nil || app.ID != "app-1" {
		t.Errorf("app = %+v", app)
	}
}

func TestPostgresApplicationRepo_Update_NotFound(t *testing.T) {
	repo, mock := newMockDB(t)
	role := "SRE"

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE applications SET role = $2, updated_at = now() WHERE id = $1`)).
		WithArgs("missing", "SRE").
		WillReturnRows(sqlmock.NewRows(applicationColumnNames))

	app, err := repo.Update(context.Background(), "missing", model.ApplicationPatch{Role: &role}, "")
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if app != nil {
		t.Errorf("expected nil, got %+v", app)
	}
}

func TestPostgresApplicationRepo_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "更新あり", affected: 1, want: true},
		{name: "存在しない", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockDB(t)

			mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET status = $2, status_updated_at = $3`)).
				WithArgs("app-1", "Offer", testNow).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.UpdateStatus(context.Background(), "app-1", model.StatusOffer, testNow)
			if err != nil {
				t.Fatalf("UpdateStatus returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("UpdateStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresApplicationRepo_MarkFollowedUp(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET followup_status = 'done', last_followed_up_at = $2`)).
		WithArgs("app-1", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkFollowedUp(context.Background(), "app-1", testNow)
	if err != nil || !ok {
		t.Errorf("MarkFollowedUp = %v, %v; want true, nil", ok, err)
	}
}

func TestPostgresApplicationRepo_Delete(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM applications WHERE id = $1`)).
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM applications WHERE id = $1`)).
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.Delete(context.Background(), "app-1")
	if err != nil || !first {
		t.Errorf("first Delete = %v, %v; want true, nil", first, err)
	}
	second, err := repo.Delete(context.Background(), "app-1")
	if err != nil || second {
		t.Errorf("second Delete = %v, %v; want false, nil", second, err)
	}
}
