package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes an error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes error on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return val, true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryBool extracts and parses a boolean query parameter
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for query param %s: %s", key, str)
	}
	return val, nil
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListParams carries the standard list query parameters: pagination,
// ordering, per-field filters, and free-text search.
type ListParams struct {
	Page           int
	Limit          int
	OrderBy        string
	OrderDirection string
	Filters        map[string]string
	Search         string
}

// Offset returns the row offset for the current page
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParseListParams extracts list parameters from the query string.
// Filters use the `filters[field]=value` convention. Invalid page or
// limit values are an error; out-of-range limits are clamped.
func ParseListParams(r *http.Request) (ListParams, error) {
	params := ListParams{
		Page:           DefaultPage,
		Limit:          DefaultLimit,
		OrderDirection: "asc",
		Filters:        make(map[string]string),
	}

	page, err := ParseQueryInt(r, "page", DefaultPage)
	if err != nil {
		return params, err
	}
	if page < 1 {
		return params, fmt.Errorf("page must be >= 1")
	}
	params.Page = page

	limit, err := ParseQueryInt(r, "limit", DefaultLimit)
	if err != nil {
		return params, err
	}
	if limit < 1 {
		return params, fmt.Errorf("limit must be >= 1")
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	params.Limit = limit

	params.OrderBy = r.URL.Query().Get("order_by")
	if dir := r.URL.Query().Get("order_direction"); dir != "" {
		dir = strings.ToLower(dir)
		if dir != "asc" && dir != "desc" {
			return params, fmt.Errorf("order_direction must be asc or desc")
		}
		params.OrderDirection = dir
	}

	params.Search = r.URL.Query().Get("search")

	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, "filters[") || !strings.HasSuffix(key, "]") {
			continue
		}
		field := key[len("filters[") : len(key)-1]
		if field == "" || len(values) == 0 {
			continue
		}
		params.Filters[field] = values[0]
	}

	return params, nil
}

// ParseListParamsOrError extracts list parameters and writes error on failure
func ParseListParamsOrError(w http.ResponseWriter, r *http.Request) (ListParams, bool) {
	params, err := ParseListParams(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return params, false
	}
	return params, true
}

// RequireNonEmpty validates that a string field is not empty
func RequireNonEmpty(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		WriteValidationError(w, fmt.Sprintf("%s is required", fieldName))
		return false
	}
	return true
}

// RequirePositive validates that an integer is positive
func RequirePositive(w http.ResponseWriter, value int64, fieldName string) bool {
	if value <= 0 {
		WriteValidationError(w, fmt.Sprintf("%s must be positive", fieldName))
		return false
	}
	return true
}
