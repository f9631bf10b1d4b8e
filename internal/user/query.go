package user

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps Page*MaxPageSize inside int32 on every platform.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// sortable maps the accepted sort keys to their column names.
var sortable = map[string]string{
	"id":    "id",
	"name":  "name",
	"email": "email",
}

// Query selects one page of users ordered by SortBy.
type Query struct {
	Page   int
	Size   int
	SortBy string
	Desc   bool
}

// Column returns the store column for SortBy, defaulting to id.
func (q Query) Column() string {
	if c, ok := sortable[q.SortBy]; ok {
		return c
	}
	return "id"
}

func (q Query) Offset() int { return q.Page * q.Size }

// Validate rejects pages whose offset could overflow or whose size is out
// of range. Stores call it before computing Offset.
func (q Query) Validate() error {
	if q.Page < 0 || q.Page > MaxPage {
		return xerrors.Ef(xerrors.KindInvalidArgument, "page must be between 0 and %d, got %d", MaxPage, q.Page)
	}
	if q.Size < 1 || q.Size > MaxPageSize {
		return xerrors.Ef(xerrors.KindInvalidArgument, "size must be between 1 and %d, got %d", MaxPageSize, q.Size)
	}
	return nil
}

func (q Query) Direction() string {
	if q.Desc {
		return "desc"
	}
	return "asc"
}

// Key identifies the query in a cache region.
func (q Query) Key() string {
	return fmt.Sprintf("page:%d:%d:%s:%s", q.Page, q.Size, q.Column(), q.Direction())
}

// ParseQuery builds a Query from raw request values. Empty values take the
// defaults: page 0, size 10, sort by id ascending.
func ParseQuery(page, size, sortBy, dir string) (Query, error) {
	q := Query{Size: DefaultPageSize, SortBy: "id"}

	if page = strings.TrimSpace(page); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 0 || n > MaxPage {
			return Query{}, xerrors.Ef(xerrors.KindInvalidArgument, "page must be an integer between 0 and %d, got %q", MaxPage, page)
		}
		q.Page = n
	}
	if size = strings.TrimSpace(size); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n < 1 || n > MaxPageSize {
			return Query{}, xerrors.Ef(xerrors.KindInvalidArgument, "size must be between 1 and %d, got %q", MaxPageSize, size)
		}
		q.Size = n
	}
	if sortBy = strings.ToLower(strings.TrimSpace(sortBy)); sortBy != "" {
		if _, ok := sortable[sortBy]; !ok {
			return Query{}, xerrors.Ef(xerrors.KindInvalidArgument, "cannot sort by %q (valid keys are id|name|email)", sortBy)
		}
		q.SortBy = sortBy
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return Query{}, xerrors.Ef(xerrors.KindInvalidArgument, "direction must be asc or desc, got %q", dir)
	}
	return q, nil
}
