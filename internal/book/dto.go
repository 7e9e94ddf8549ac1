// Package book は本の管理のドメインロジックを提供する。
package book

import (
	"time"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/validator"
)

// Patch は本の部分更新の入力を表す。
// 全フィールドがポインタで、nilは「変更しない」、非nilは「その値を代入する」を意味する。
type Patch struct {
	Title               *string    `json:"title"`
	AuthorFirstName     *string    `json:"author_first_name"`
	AuthorLastName      *string    `json:"author_last_name"`
	PredefinedShelf     *string    `json:"predefined_shelf"`
	Genre               *string    `json:"genre"`
	Format              *string    `json:"format"`
	NumberOfPages       *int       `json:"number_of_pages"`
	PagesRead           *int       `json:"pages_read"`
	SeriesPosition      *int       `json:"series_position"`
	Edition             *int       `json:"edition"`
	ISBN                *string    `json:"isbn"`
	YearOfPublication   *int       `json:"year_of_publication"`
	Rating              *float64   `json:"rating"`
	Review              *string    `json:"review"`
	DateStartedReading  *time.Time `json:"date_started_reading"`
	DateFinishedReading *time.Time `json:"date_finished_reading"`
}

// Dto は本の作成リクエストを表す。Patchと同じ構造でTitleのみ必須。
type Dto Patch

// Validate は部分更新の値を検証する。指定されたフィールドのみ検証する。
func (p Patch) Validate(v *validator.Validator) {
	if p.Title != nil {
		v.Check(validator.NotBlank(*p.Title), "title", "must not be blank")
	}
	if p.PredefinedShelf != nil {
		_, ok := model.ParseShelf(*p.PredefinedShelf)
		v.Check(ok, "predefined_shelf", "must be one of to-read, reading, read, did-not-finish")
	}
	if p.Rating != nil {
		v.Check(validator.Between(*p.Rating, 0, 10), "rating", "must be between 0 and 10")
	}
	checkNonNegative(v, p.NumberOfPages, "number_of_pages")
	checkNonNegative(v, p.PagesRead, "pages_read")
	checkNonNegative(v, p.SeriesPosition, "series_position")
	checkNonNegative(v, p.Edition, "edition")
}

// Validate は作成リクエストを検証する。
func (d Dto) Validate(v *validator.Validator) {
	v.Check(d.Title != nil, "title", "must be provided")
	Patch(d).Validate(v)
}

func checkNonNegative(v *validator.Validator, n *int, key string) {
	if n != nil {
		v.Check(*n >= 0, key, "must not be negative")
	}
}

// FromDto は作成リクエストから本を組み立てる。
// 本棚が指定されていない場合は to-read に置く。
func FromDto(d Dto, userID int64) *model.Book {
	b := &model.Book{
		UserID:          userID,
		PredefinedShelf: model.ShelfToRead,
	}
	applyFields(b, Patch(d))
	return b
}

// ApplyPatch はpの非nilフィールドをbに代入する。
// 同じパッチを2回適用しても結果は1回の場合と同じになる。
func ApplyPatch(b *model.Book, p Patch) {
	applyFields(b, p)
}

func applyFields(b *model.Book, p Patch) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.AuthorFirstName != nil {
		b.AuthorFirstName = *p.AuthorFirstName
	}
	if p.AuthorLastName != nil {
		b.AuthorLastName = *p.AuthorLastName
	}
	if p.PredefinedShelf != nil {
		if shelf, ok := model.ParseShelf(*p.PredefinedShelf); ok {
			b.PredefinedShelf = shelf
		}
	}
	if p.Genre != nil {
		b.Genre = *p.Genre
	}
	if p.Format != nil {
		b.Format = *p.Format
	}
	if p.NumberOfPages != nil {
		b.NumberOfPages = *p.NumberOfPages
	}
	if p.PagesRead != nil {
		b.PagesRead = *p.PagesRead
	}
	if p.SeriesPosition != nil {
		b.SeriesPosition = *p.SeriesPosition
	}
	if p.Edition != nil {
		b.Edition = *p.Edition
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
	if p.YearOfPublication != nil {
		b.YearOfPublication = *p.YearOfPublication
	}
	if p.Rating != nil {
		b.Rating = *p.Rating
	}
	if p.Review != nil {
		b.Review = *p.Review
	}
	if p.DateStartedReading != nil {
		t := *p.DateStartedReading
		b.DateStartedReading = &t
	}
	if p.DateFinishedReading != nil {
		t := *p.DateFinishedReading
		b.DateFinishedReading = &t
	}
}
