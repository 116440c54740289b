// Package report writes verified scans to the inventory report.
package report

import (
	"time"

	"github.com/teslashibe/shelfscan/pkg/catalog"
)

// Status values written in the Status column.
const StatusVerified = "Verified"

// Placeholder fills category columns that do not apply to a row.
const Placeholder = "-"

// Date and time column layouts.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Header is the fixed column header of the report file.
var Header = []string{
	"Date", "Time", "Scanned Code",
	"FOOD Items", "ELECTRONICS Items", "GROCERY Items",
	"Price (INR)", "Status",
}

// Record is one report row.
type Record struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Code        string `json:"code"`
	Food        string `json:"food"`
	Electronics string `json:"electronics"`
	Grocery     string `json:"grocery"`
	Price       string `json:"price"`
	Status      string `json:"status"`

	// Entry is the catalog item the row was built from; not written to the file.
	Entry catalog.Entry `json:"-"`
}

// NewRecord builds the row for entry scanned at now. The item name goes in
// exactly one category column; Other leaves all three as Placeholder.
func NewRecord(code string, entry catalog.Entry, now time.Time) Record {
	r := Record{
		Date:        now.Format(DateLayout),
		Time:        now.Format(TimeLayout),
		Code:        code,
		Food:        Placeholder,
		Electronics: Placeholder,
		Grocery:     Placeholder,
		Price:       entry.Price,
		Status:      StatusVerified,
		Entry:       entry,
	}
	switch entry.Category {
	case catalog.Food:
		r.Food = entry.Name
	case catalog.Electronics:
		r.Electronics = entry.Name
	case catalog.Grocery:
		r.Grocery = entry.Name
	}
	return r
}

// Row returns the record's columns in Header order.
func (r Record) Row() []string {
	return []string{r.Date, r.Time, r.Code, r.Food, r.Electronics, r.Grocery, r.Price, r.Status}
}

// ItemName returns whichever category column holds the name, or "" for Other.
func (r Record) ItemName() string {
	for _, v := range []string{r.Food, r.Electronics, r.Grocery} {
		if v != Placeholder {
			return v
		}
	}
	return ""
}

func recordFromRow(row []string) Record {
	return Record{
		Date:        row[0],
		Time:        row[1],
		Code:        row[2],
		Food:        row[3],
		Electronics: row[4],
		Grocery:     row[5],
		Price:       row[6],
		Status:      row[7],
	}
}
