package http

import (
	"fmt"
	"net/http"
	"strconv"

	"courtsync/pkg/config"
	apperrors "courtsync/pkg/errors"
)

// ExtractLimitOffset reads pagination from the query string and clamps it
// to the configured bounds. Absent parameters fall back to the defaults.
func ExtractLimitOffset(r *http.Request) (limit int, offset int64, err error) {
	q := r.URL.Query()

	if s := q.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput(fmt.Sprintf("limit %q is not a number", s))
		}
	}
	if s := q.Get("offset"); s != "" {
		offset, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput(fmt.Sprintf("offset %q is not a number", s))
		}
	}
	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}
