package model

import "time"

// Book represents a title in the catalog together with its copy
// counters. AvailableCopies moves only through guarded updates in the
// loan repository and always stays within [0, TotalCopies].
//
// Fields:
//  ID              – primary key identifier.
//  ISBN            – unique ISBN.
//  Title           – book title.
//  Author          – author display string.
//  TotalCopies     – copies the library owns.
//  AvailableCopies – copies currently on the shelf.
//  IsActive        – whether the title can be borrowed.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Book struct {
	ID              uint64    // books.id
	ISBN            string    // books.isbn
	Title           string    // books.title
	Author          string    // books.author
	TotalCopies     uint32    // books.total_copies
	AvailableCopies uint32    // books.available_copies
	IsActive        bool      // books.is_active
	CreatedAt       time.Time // books.created_at
	UpdatedAt       time.Time // books.updated_at
}
