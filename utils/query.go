package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// SheetFilter narrows report sheet queries. Empty fields are ignored; Tanggal wins over
// the DateFrom/DateTo range when both are supplied.
type SheetFilter struct {
	NIS      string
	Rombel   string
	Tanggal  string
	DateFrom string
	DateTo   string
}

// DateRange returns the effective (exact, from, to) date bounds.
func (f SheetFilter) DateRange() (exact, from, to string) {
	if f.Tanggal != "" {
		return f.Tanggal, "", ""
	}
	return "", f.DateFrom, f.DateTo
}

type Pagination struct {
	Limit  int
	Offset int
}

// NewPagination clamps limit into [1, MaxLimit] and offset to >= 0.
func NewPagination(limit, offset int) Pagination {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// ParseSheetFilter reads nis, rombel, tanggal, date_from and date_to.
func ParseSheetFilter(c *fiber.Ctx) SheetFilter {
	return SheetFilter{
		NIS:      strings.TrimSpace(c.Query("nis")),
		Rombel:   strings.TrimSpace(c.Query("rombel")),
		Tanggal:  strings.TrimSpace(c.Query("tanggal")),
		DateFrom: strings.TrimSpace(c.Query("date_from")),
		DateTo:   strings.TrimSpace(c.Query("date_to")),
	}
}

// ParsePagination reads limit/offset; unparsable values fall back to defaults and
// fractional values are floored before clamping.
func ParsePagination(c *fiber.Ctx) Pagination {
	limit := parseNumber(c.Query("limit"), DefaultLimit)
	offset := parseNumber(c.Query("offset"), 0)
	return NewPagination(limit, offset)
}

// IsFlat reports whether the caller asked for list mode even when nis is given.
func IsFlat(c *fiber.Ctx) bool {
	return c.Query("flat") == "1"
}

func parseNumber(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	f = math.Floor(f)
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}
