package model

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// DateLayout is the storage format of PatientRecord.ReturnDate.
const DateLayout = "2006-01-02"

var (
	ErrMissingName       = errors.New("name is required")
	ErrMissingEmail      = errors.New("email is required")
	ErrMissingReturnDate = errors.New("returnDate is required")
	ErrInvalidReturnDate = errors.New("returnDate must use the YYYY-MM-DD format")
)

// PatientRecord is one follow-up entry of the clinic schedule.
type PatientRecord struct {
	ID         int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name       string     `json:"name" gorm:"not null"`
	Contact    string     `json:"contact"`
	Email      string     `json:"email" gorm:"not null"`
	Procedure  string     `json:"procedure"`
	ReturnDate string     `json:"returnDate" gorm:"size:10;index;not null"`
	NotifiedAt *time.Time `json:"notifiedAt,omitempty"`
}

// Validate checks the mandatory fields of a record about to be created.
func (p PatientRecord) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(p.Email) == "" {
		return ErrMissingEmail
	}
	if strings.TrimSpace(p.ReturnDate) == "" {
		return ErrMissingReturnDate
	}
	if _, err := time.Parse(DateLayout, p.ReturnDate); err != nil {
		return ErrInvalidReturnDate
	}
	return nil
}

// DisplayReturnDate renders the return date as DD/MM/YYYY. Values that are not
// stored dates are returned unchanged.
func (p PatientRecord) DisplayReturnDate() string {
	d, err := time.Parse(DateLayout, p.ReturnDate)
	if err != nil {
		return p.ReturnDate
	}
	return d.Format("02/01/2006")
}

// SortByReturnDate orders records ascending by return date, oldest id first on ties.
func SortByReturnDate(records []PatientRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].ReturnDate != records[j].ReturnDate {
			return records[i].ReturnDate < records[j].ReturnDate
		}
		return records[i].ID < records[j].ID
	})
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NextID returns a millisecond timestamp id. Two calls within the same
// millisecond still get distinct, increasing values.
func NextID() int64 {
	return nextIDAt(time.Now())
}

func nextIDAt(now time.Time) int64 {
	idMu.Lock()
	defer idMu.Unlock()
	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}
