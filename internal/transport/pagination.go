package transport

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// pageParams reads ?limit=&offset=, clamping bad values to the defaults.
func pageParams(c *gin.Context) (limit, offset int) {
	// Получаем параметры пагинации
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func pageMeta(total, limit, offset, returned int) map[string]interface{} {
	return map[string]interface{}{
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"has_more": offset+returned < total,
	}
}

// paginate applies ?limit=&offset= to an already ordered list.
func paginate[T any](c *gin.Context, items []T) ([]T, map[string]interface{}) {
	limit, offset := pageParams(c)

	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	return items[start:end], pageMeta(len(items), limit, offset, end-start)
}
