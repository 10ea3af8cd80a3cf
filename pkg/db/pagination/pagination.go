package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=10" binding:"omitempty,gte=1,lte=250"`
}

// Cursor points at the last row of a page ordered by (SortAt desc, ID desc).
type Cursor struct {
	ID     int64     `json:"id,omitempty"`
	SortAt time.Time `json:"sort_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}

	return &cursor, nil
}

// Apply adds keyset ordering on sortColumn and the table's id, fetching one
// extra row so the caller can tell whether another page exists.
func Apply(q *gorm.DB, p Pagination, table, sortColumn string) (*gorm.DB, error) {
	sortCol := table + "." + sortColumn
	idCol := table + ".id"

	if p.PageToken != "" {
		cursor, err := DecodeCursor(p.PageToken)
		if err != nil {
			return nil, err
		}
		q = q.Where("("+sortCol+" < ? OR ("+sortCol+" = ? AND "+idCol+" < ?))",
			cursor.SortAt, cursor.SortAt, cursor.ID)
	}

	return q.Order(sortCol + " DESC").Order(idCol + " DESC").Limit(p.Limit() + 1), nil
}

// BuildCursorPageInfo trims the extra row fetched by Apply and returns the page info.
func BuildCursorPageInfo[T any](data []T, limit int, extractCursor func(T) Cursor) ([]T, PageInfo) {
	if len(data) == 0 {
		return data, PageInfo{HasMore: false}
	}

	hasMore := false
	if len(data) > limit {
		hasMore = true
		data = data[:limit]
	}

	info := PageInfo{HasMore: hasMore}
	if hasMore {
		token, err := EncodeCursor(extractCursor(data[len(data)-1]))
		if err == nil {
			info.NextPageToken = token
		}
	}

	return data, info
}
