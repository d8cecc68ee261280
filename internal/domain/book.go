package domain

import "time"

// Book is a catalogue title; physical inventory lives in Copy.
type Book struct {
	ID            string
	Title         string
	Author        string
	ISBN          string
	PublishedYear int
	CreatedAt     time.Time
}

// Category labels books; a book can carry any number of categories.
type Category struct {
	ID   string
	Name string
}

// Availability summarizes a book's copy counts. CopiesAvailable can never
// exceed CopiesTotal since both are derived from the same copy rows.
type Availability struct {
	BookID          string
	CopiesTotal     int
	CopiesAvailable int
}
