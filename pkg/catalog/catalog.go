// Package catalog loads the static product table that scanned codes are
// checked against.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the catalog file does not exist.
	ErrNotFound = errors.New("catalog: file not found")

	// ErrMalformed is returned when the catalog cannot be parsed.
	ErrMalformed = errors.New("catalog: malformed")
)

// columns: code, name, price, category
const minColumns = 4

// Category is the product group that decides which report column gets the name.
type Category int

const (
	Other Category = iota
	Food
	Electronics
	Grocery
)

// ParseCategory maps the catalog's category text. Unknown values become Other.
func ParseCategory(s string) Category {
	switch strings.TrimSpace(s) {
	case "Food":
		return Food
	case "Electronics":
		return Electronics
	case "Grocery":
		return Grocery
	default:
		return Other
	}
}

func (c Category) String() string {
	switch c {
	case Food:
		return "Food"
	case Electronics:
		return "Electronics"
	case Grocery:
		return "Grocery"
	default:
		return "Other"
	}
}

// Entry is one known item.
type Entry struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// Price is kept exactly as written in the catalog.
	Price string `json:"price"`
	// Amount is Price parsed; zero when Price is not a number.
	Amount   decimal.Decimal `json:"amount"`
	Category Category        `json:"-"`
	// Genre is the raw category text, shown to the operator.
	Genre string `json:"category"`
}

// Catalog maps codes to entries. It is read-only after Load.
type Catalog struct {
	entries map[string]Entry
}

// New builds a catalog from entries; later duplicates replace earlier ones.
func New(entries ...Entry) *Catalog {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		c.entries[e.Code] = e
	}
	return c
}

// Empty returns a catalog that knows no codes.
func Empty() *Catalog {
	return New()
}

// NewEntry builds an Entry from its text columns.
func NewEntry(code, name, price, genre string) Entry {
	amount, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		amount = decimal.Zero
	}
	return Entry{
		Code:     code,
		Name:     name,
		Price:    price,
		Amount:   amount,
		Category: ParseCategory(genre),
		Genre:    genre,
	}
}

// Load reads a CSV catalog with a header row. The returned catalog is always
// usable: on any error it is empty and the error says why, so callers can
// report the problem and keep scanning with every code unregistered.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Empty(), fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Empty(), fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return Empty(), fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse reads catalog rows from r. The first row is a header and is skipped.
func Parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	// Hand-edited sheets carry bare quotes in names (Monitor 24").
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return Empty(), nil
		}
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}

	c := Empty()
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(row) < minColumns {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d", ErrMalformed, line, len(row), minColumns)
		}
		c.entries[row[0]] = NewEntry(row[0], row[1], row[2], row[3])
	}
	return c, nil
}

// Lookup returns the entry for code.
func (c *Catalog) Lookup(code string) (Entry, bool) {
	e, ok := c.entries[code]
	return e, ok
}

// Len returns the number of known codes.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns all entries sorted by code.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
