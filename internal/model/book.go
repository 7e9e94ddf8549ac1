// Package model はドメインモデルを定義する。
package model

import "time"

// Book はユーザーが管理する本を表す。
// Titleのみ必須で、それ以外の項目は未設定（ゼロ値またはnil）を許容する。
type Book struct {
	ID                  int64      `json:"id" db:"id"`
	UserID              int64      `json:"user_id" db:"user_id"`
	Title               string     `json:"title" db:"title"`
	AuthorFirstName     string     `json:"author_first_name" db:"author_first_name"`
	AuthorLastName      string     `json:"author_last_name" db:"author_last_name"`
	PredefinedShelf     Shelf      `json:"predefined_shelf" db:"predefined_shelf"`
	Genre               string     `json:"genre" db:"genre"`
	Format              string     `json:"format" db:"format"`
	NumberOfPages       int        `json:"number_of_pages" db:"number_of_pages"`
	PagesRead           int        `json:"pages_read" db:"pages_read"`
	SeriesPosition      int        `json:"series_position" db:"series_position"`
	Edition             int        `json:"edition" db:"edition"`
	ISBN                string     `json:"isbn" db:"isbn"`
	YearOfPublication   int        `json:"year_of_publication" db:"year_of_publication"`
	Rating              float64    `json:"rating" db:"rating"`
	Review              string     `json:"review" db:"review"`
	DateStartedReading  *time.Time `json:"date_started_reading" db:"date_started_reading"`
	DateFinishedReading *time.Time `json:"date_finished_reading" db:"date_finished_reading"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// Shelf は定義済み本棚の名前を表す。
type Shelf string

const (
	// ShelfToRead はこれから読む本の棚。
	ShelfToRead Shelf = "to-read"
	// ShelfReading は読書中の本の棚。
	ShelfReading Shelf = "reading"
	// ShelfRead は読了した本の棚。
	ShelfRead Shelf = "read"
	// ShelfDidNotFinish は途中でやめた本の棚。
	ShelfDidNotFinish Shelf = "did-not-finish"
)

// PredefinedShelves は定義済み本棚を表示順で返す。
func PredefinedShelves() []Shelf {
	return []Shelf{ShelfToRead, ShelfReading, ShelfRead, ShelfDidNotFinish}
}

// ParseShelf は本棚名を検証してShelfに変換する。
func ParseShelf(name string) (Shelf, bool) {
	for _, s := range PredefinedShelves() {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}
