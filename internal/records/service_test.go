package records_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"notabene.org/internal/records"
	"notabene.org/internal/store"
)

func newServiceFixture(t *testing.T) (*records.Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	binder := store.NewBinder()
	uow := func() records.UnitOfWork { return store.NewCoordinator(db, binder) }
	svc, err := records.NewService(uow, records.WithClock(func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, mock, func() { _ = db.Close() }
}

func TestCreateBookmark(t *testing.T) {
	svc, mock, done := newServiceFixture(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("insert into bookmarks").
		WithArgs(sqlmock.AnyArg(), "Go blog", "https://go.dev/blog", "reading list",
			"jdoe", sqlmock.AnyArg(), "jdoe", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := svc.CreateBookmark(context.Background(), "jdoe", " Go blog ", "https://go.dev/blog", "reading list")
	if err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}
	if b.ID == "" {
		t.Fatal("expected a generated id")
	}
	if b.Title != "Go blog" {
		t.Fatalf("title not trimmed: %q", b.Title)
	}
	if b.CreatedBy != "jdoe" || b.CreatedOn.IsZero() {
		t.Fatalf("audit stamp missing: %+v", b.Audit)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateBookmarkValidation(t *testing.T) {
	svc, mock, done := newServiceFixture(t)
	defer done()

	if _, err := svc.CreateBookmark(context.Background(), "jdoe", "", "https://x", ""); !errors.Is(err, records.ErrInvalidInput) {
		t.Fatalf("blank title: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.CreateBookmark(context.Background(), "jdoe", "t", "  ", ""); !errors.Is(err, records.ErrInvalidInput) {
		t.Fatalf("blank url: expected ErrInvalidInput, got %v", err)
	}
	// Validation failures never reach the database.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database activity: %v", err)
	}
}

func TestDeleteLookupTypeCascadesAtomically(t *testing.T) {
	svc, mock, done := newServiceFixture(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("delete from lookups where lookup_type_id=").
		WithArgs("lt-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("delete from lookup_types where id=").
		WithArgs("lt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.DeleteLookupType(context.Background(), "lt-1"); err != nil {
		t.Fatalf("DeleteLookupType: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteLookupTypeMissingRollsBack(t *testing.T) {
	svc, mock, done := newServiceFixture(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("delete from lookups where lookup_type_id=").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from lookup_types where id=").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := svc.DeleteLookupType(context.Background(), "ghost"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateLookupRequiresParentType(t *testing.T) {
	svc, mock, done := newServiceFixture(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("from lookup_types where id=").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if _, err := svc.CreateLookup(context.Background(), "jdoe", "ghost", "Kazakhstan", "KZ"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing parent type, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateSnippetTouchesAudit(t *testing.T) {
	svc, mock, done := newServiceFixture(t)
	defer done()

	created := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "title", "language", "body", "description",
		"created_by", "created_on", "last_modified_by", "last_modified_on",
	}).AddRow("sn-1", "old title", "go", "fmt.Println()", "", "alice", created, "alice", created)

	mock.ExpectBegin()
	mock.ExpectQuery("from snippets where id=").
		WithArgs("sn-1").
		WillReturnRows(rows)
	mock.ExpectExec("update snippets").
		WithArgs("sn-1", "new title", "go", "fmt.Println()", "", "bob", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sn, err := svc.UpdateSnippet(context.Background(), "bob", "sn-1", "new title", "go", "fmt.Println()", "")
	if err != nil {
		t.Fatalf("UpdateSnippet: %v", err)
	}
	if sn.CreatedBy != "alice" || !sn.CreatedOn.Equal(created) {
		t.Fatal("create stamp must not change on update")
	}
	if sn.LastModifiedBy != "bob" || sn.LastModifiedOn.Equal(created) {
		t.Fatal("modify stamp was not touched")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
