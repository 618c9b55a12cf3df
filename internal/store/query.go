package store

import (
	"math"
	"strings"

	"gorm.io/gorm"

	"shopfloor-ops-backend/internal/model"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	// MaxLimit caps the page size a caller may request.
	MaxLimit = 100
)

// Page is one slice of an ordered listing.
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
	Pages int
}

// Pagination is the 1-indexed window requested by a caller.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize falls back to the defaults for values below 1, caps Limit at
// MaxLimit and keeps the offset of Page within int range.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if maxPage := math.MaxInt/p.Limit + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

// PageCount is ceil(total/limit).
func PageCount(total int64, limit int) int {
	if limit < 1 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// AlertQuery filters an alert listing. Empty fields do not filter.
type AlertQuery struct {
	Status    model.AlertStatus
	Priority  model.AlertPriority
	MachineID uint
	Search    string

	// CreatedBy restricts the listing to alerts raised by this user.
	CreatedBy uint
	// AssignedOrOpenFor restricts the listing to alerts assigned to this user
	// or still open.
	AssignedOrOpenFor uint

	Pagination
}

type MachineQuery struct {
	Status   model.MachineStatus
	Location string
	Search   string
	Pagination
}

type UserQuery struct {
	Role     model.Role
	IsActive *bool
	Search   string
	Pagination
}

type MaintenanceQuery struct {
	MachineID uint
	Status    model.MaintenanceStatus
	Pagination
}

// likePattern builds a case-insensitive substring pattern with LIKE
// wildcards in term escaped.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}

// searchAny adds (LOWER(c1) LIKE ? OR LOWER(c2) LIKE ? ...) as one grouped condition.
func searchAny(q *gorm.DB, term string, columns ...string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return q
	}
	pattern := likePattern(term)
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		parts[i] = "LOWER(" + c + ") LIKE ? ESCAPE '\\'"
		args[i] = pattern
	}
	return q.Where("("+strings.Join(parts, " OR ")+")", args...)
}

// paginate counts q, then loads the requested window newest first with the
// given associations preloaded.
func paginate[T any](q *gorm.DB, p Pagination, preloads ...string) (*Page[T], error) {
	p = p.Normalize()

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	for _, assoc := range preloads {
		q = q.Preload(assoc)
	}
	items := []T{}
	if err := q.Order("created_at DESC").Order("id DESC").
		Offset(p.offset()).Limit(p.Limit).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &Page[T]{
		Items: items,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
		Pages: PageCount(total, p.Limit),
	}, nil
}
