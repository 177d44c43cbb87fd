package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name                 string             `bson:"name" json:"name" validate:"required,min=2"`
	Email                string             `bson:"email" json:"email" validate:"required,email"`
	Password             string             `bson:"password" json:"-" validate:"required,min=6"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time         `bson:"passwordResetExpires,omitempty" json:"-"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Category struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string             `bson:"name" json:"name" validate:"required,min=2"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Book struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title           string             `bson:"title" json:"title" validate:"required,min=1"`
	Author          string             `bson:"author" json:"author" validate:"required,min=2"`
	ISBN            string             `bson:"isbn" json:"isbn" validate:"required,min=10"`
	Category        primitive.ObjectID `bson:"category" json:"category"`
	TotalCopies     int                `bson:"totalCopies" json:"totalCopies" validate:"required,min=1"`
	AvailableCopies int                `bson:"availableCopies" json:"availableCopies"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Reader struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string             `bson:"name" json:"name" validate:"required,min=2"`
	Email     string             `bson:"email" json:"email" validate:"required,email"`
	Phone     string             `bson:"phone" json:"phone" validate:"omitempty,min=7"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type LendingStatus string

const (
	StatusBorrowed LendingStatus = "BORROWED"
	StatusReturned LendingStatus = "RETURNED"
	StatusOverdue  LendingStatus = "OVERDUE"
)

type Lending struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Book       primitive.ObjectID `bson:"book" json:"book"`
	Reader     primitive.ObjectID `bson:"reader" json:"reader"`
	BookTitle  string             `bson:"-" json:"bookTitle,omitempty"`
	ReaderName string             `bson:"-" json:"readerName,omitempty"`
	BorrowedAt time.Time          `bson:"borrowedAt" json:"borrowedAt"`
	DueDate    time.Time          `bson:"dueDate" json:"dueDate"`
	ReturnedAt *time.Time         `bson:"returnedAt,omitempty" json:"returnedAt,omitempty"`
	Status     LendingStatus      `bson:"status" json:"status"`
}

// StatusAt derives the effective status. OVERDUE is never persisted, it is
// computed from the due date whenever a lending is read.
func (l *Lending) StatusAt(now time.Time) LendingStatus {
	if l.Status == StatusReturned {
		return StatusReturned
	}
	if l.DueDate.Before(now) {
		return StatusOverdue
	}
	return StatusBorrowed
}

// Patch types carry merge-patch updates: nil fields are left untouched.

type CategoryPatch struct {
	Name *string `json:"name" validate:"omitempty,min=2"`
}

type BookPatch struct {
	Title       *string             `json:"title" validate:"omitempty,min=1"`
	Author      *string             `json:"author" validate:"omitempty,min=2"`
	ISBN        *string             `json:"isbn" validate:"omitempty,min=10"`
	Category    *primitive.ObjectID `json:"category"`
	TotalCopies *int                `json:"totalCopies" validate:"omitempty,min=1"`
}

type ReaderPatch struct {
	Name  *string `json:"name" validate:"omitempty,min=2"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone" validate:"omitempty,min=7"`
}
