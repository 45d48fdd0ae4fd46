package http

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxPageSize = 100

// maxPageNumber keeps offsets and neighbour page numbers inside int.
const maxPageNumber = math.MaxInt/maxPageSize - 1

var errInvalidPage = errors.New("invalid page")

type pageParams struct {
	Number int
	Size   int
}

func (p pageParams) Offset() int {
	return (p.Number - 1) * p.Size
}

// parsePage reads ?page and ?limit. A malformed page is an error; a
// malformed limit falls back to the default and large limits are capped.
func parsePage(r *http.Request, defaultSize int) (pageParams, error) {
	p := pageParams{Number: 1, Size: defaultSize}
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageNumber {
			return p, errInvalidPage
		}
		p.Number = n
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Size = min(n, maxPageSize)
		}
	}
	return p, nil
}

type paginated struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// paginate wraps a page of results with the total and neighbour links.
// Pages past the end are reported as errInvalidPage, except the first.
func paginate(r *http.Request, baseURL string, p pageParams, total int64, results any) (paginated, error) {
	if p.Number > 1 && int64(p.Offset()) >= total {
		return paginated{}, errInvalidPage
	}
	out := paginated{Count: total, Results: results}
	if int64(p.Number*p.Size) < total {
		next := pageURL(r, baseURL, p.Number+1)
		out.Next = &next
	}
	if p.Number > 1 {
		prev := pageURL(r, baseURL, p.Number-1)
		out.Previous = &prev
	}
	return out, nil
}

func pageURL(r *http.Request, baseURL string, number int) string {
	q := url.Values{}
	for k, v := range r.URL.Query() {
		q[k] = append([]string(nil), v...)
	}
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u := baseURL + r.URL.Path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func writePage(w http.ResponseWriter, r *http.Request, baseURL string, p pageParams, total int64, results any) {
	body, err := paginate(r, baseURL, p, total, results)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}
	writeJSON(w, http.StatusOK, body)
}
