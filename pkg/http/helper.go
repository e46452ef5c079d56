package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"medisched/pkg/config"
	apperrors "medisched/pkg/errors"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

// ExtractTime reads an RFC 3339 timestamp from the query string.
func ExtractTime(r *http.Request, key string) (time.Time, error) {
	s := strings.TrimSpace(r.URL.Query().Get(key))
	if s == "" {
		return time.Time{}, apperrors.InvalidInput("'" + key + "' query parameter is required")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid " + key + " parameter, expected RFC 3339: " + s)
	}
	return t, nil
}

// ExtractRange reads the "start" and "end" query parameters.
func ExtractRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := ExtractTime(r, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ExtractTime(r, "end")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// ExtractList splits a comma separated query parameter, dropping blanks.
func ExtractList(r *http.Request, key string) []string {
	var out []string
	for _, part := range strings.Split(r.URL.Query().Get(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
