package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hitoshi/bookshelf/internal/model"
)

const (
	dialectPostgres = "postgres"
	tableBooks      = "books"
	colID           = "id"
	colUserID       = "user_id"
	colTitle        = "title"
	colFirstName    = "author_first_name"
	colLastName     = "author_last_name"
	colShelf        = "predefined_shelf"
	colCreatedAt    = "created_at"
	colUpdatedAt    = "updated_at"
)

// bookColumns はSELECT対象の列。model.Bookのdbタグと一致させる。
var bookColumns = []interface{}{
	colID, colUserID, colTitle, colFirstName, colLastName, colShelf,
	"genre", "format", "number_of_pages", "pages_read", "series_position", "edition",
	"isbn", "year_of_publication", "rating", "review",
	"date_started_reading", "date_finished_reading",
	colCreatedAt, colUpdatedAt,
}

// likeEscaper はLIKEパターンのメタ文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresBookRepo はPostgreSQLを使用した本リポジトリ。
// SQLはgoquで組み立て、sqlxで実行・スキャンする。
type PostgresBookRepo struct {
	db *sqlx.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sqlx.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// FindAll はユーザーの全ての本をID昇順で取得する。
func (r *PostgresBookRepo) FindAll(ctx context.Context, userID int64) ([]*model.Book, error) {
	query, args, err := buildFindAllQuery(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to build find all books query: %w", err)
	}

	books := []*model.Book{}
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// FindByID は指定IDの本を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id int64) (*model.Book, error) {
	query, args, err := buildFindByIDQuery(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build find book query: %w", err)
	}

	book := &model.Book{}
	err = r.db.GetContext(ctx, book, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book by ID: %w", err)
	}
	return book, nil
}

// FindByShelf はユーザーの指定本棚にある本を取得する。
func (r *PostgresBookRepo) FindByShelf(ctx context.Context, userID int64, shelf model.Shelf, title, author string) ([]*model.Book, error) {
	query, args, err := buildFindByShelfQuery(userID, shelf, title, author)
	if err != nil {
		return nil, fmt.Errorf("failed to build find by shelf query: %w", err)
	}

	books := []*model.Book{}
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list books by shelf: %w", err)
	}
	return books, nil
}

// Create は本を作成し、採番されたIDとタイムスタンプをbookに設定する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	query, args, err := buildInsertQuery(book)
	if err != nil {
		return fmt.Errorf("failed to build insert book query: %w", err)
	}

	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt)
	if isConstraintViolation(err) {
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// Update は本の全項目を上書き更新する。
func (r *PostgresBookRepo) Update(ctx context.Context, book *model.Book) error {
	query, args, err := buildUpdateQuery(book)
	if err != nil {
		return fmt.Errorf("failed to build update book query: %w", err)
	}

	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&book.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("book not found: %d", book.ID)
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

// Delete は指定IDの本を削除する。
func (r *PostgresBookRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := goqu.Dialect(dialectPostgres).
		Delete(tableBooks).
		Where(goqu.C(colID).Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete book query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

func selectBooks() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(tableBooks).
		Select(bookColumns...)
}

func buildFindAllQuery(userID int64) (string, []interface{}, error) {
	return selectBooks().
		Where(goqu.C(colUserID).Eq(userID)).
		Order(goqu.C(colID).Asc()).
		Prepared(true).
		ToSQL()
}

func buildFindByIDQuery(id int64) (string, []interface{}, error) {
	return selectBooks().
		Where(goqu.C(colID).Eq(id)).
		Prepared(true).
		ToSQL()
}

func buildFindByShelfQuery(userID int64, shelf model.Shelf, title, author string) (string, []interface{}, error) {
	conditions := []goqu.Expression{
		goqu.C(colUserID).Eq(userID),
		goqu.C(colShelf).Eq(string(shelf)),
	}
	if title != "" {
		conditions = append(conditions, goqu.C(colTitle).ILike(containsPattern(title)))
	}
	if author != "" {
		pattern := containsPattern(author)
		conditions = append(conditions, goqu.Or(
			goqu.C(colFirstName).ILike(pattern),
			goqu.C(colLastName).ILike(pattern),
		))
	}

	return selectBooks().
		Where(goqu.And(conditions...)).
		Order(goqu.C(colID).Asc()).
		Prepared(true).
		ToSQL()
}

func buildInsertQuery(book *model.Book) (string, []interface{}, error) {
	record := bookRecord(book)
	record[colUserID] = book.UserID

	return goqu.Dialect(dialectPostgres).
		Insert(tableBooks).
		Rows(record).
		Returning(colID, colCreatedAt, colUpdatedAt).
		Prepared(true).
		ToSQL()
}

func buildUpdateQuery(book *model.Book) (string, []interface{}, error) {
	record := bookRecord(book)
	record[colUpdatedAt] = goqu.L("now()")

	return goqu.Dialect(dialectPostgres).
		Update(tableBooks).
		Set(record).
		Where(goqu.C(colID).Eq(book.ID)).
		Returning(colUpdatedAt).
		Prepared(true).
		ToSQL()
}

// bookRecord はユーザーが編集可能な列の値を返す。
// user_id、created_atは含まない。
func bookRecord(book *model.Book) goqu.Record {
	return goqu.Record{
		colTitle:                book.Title,
		colFirstName:            book.AuthorFirstName,
		colLastName:             book.AuthorLastName,
		colShelf:                string(book.PredefinedShelf),
		"genre":                 book.Genre,
		"format":                book.Format,
		"number_of_pages":       book.NumberOfPages,
		"pages_read":            book.PagesRead,
		"series_position":       book.SeriesPosition,
		"edition":               book.Edition,
		"isbn":                  book.ISBN,
		"year_of_publication":   book.YearOfPublication,
		"rating":                book.Rating,
		"review":                book.Review,
		"date_started_reading":  nullableTime(book.DateStartedReading),
		"date_finished_reading": nullableTime(book.DateFinishedReading),
	}
}

// nullableTime はnilポインタをSQLのNULLに変換する。
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// isConstraintViolation はerrがPostgreSQLの整合性制約違反（クラス23）かどうかを返す。
func isConstraintViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "23"
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
