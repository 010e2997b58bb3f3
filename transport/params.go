package transport

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/kit/errors"
)

// decodeFindOptions reads the shared page/pagesize/sort/order query
// parameters.
func decodeFindOptions(r *http.Request) (vistable.FindOptions, error) {
	var opts vistable.FindOptions
	q := r.URL.Query()

	for key, dst := range map[string]*int{"page": &opts.Page, "pagesize": &opts.PageSize} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return opts, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("invalid %s %q", key, raw),
			}
		}
		*dst = v
	}

	if field := q.Get("sort"); field != "" {
		order := vistable.SortAsc
		switch q.Get("order") {
		case "", "ASC", "asc":
		case "DESC", "desc":
			order = vistable.SortDesc
		default:
			return opts, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("invalid sort order %q", q.Get("order")),
			}
		}
		opts.Sort = []vistable.Sort{{Field: field, Order: order}}
	}
	return opts, nil
}

// idFromURL parses the {id} route parameter.
func idFromURL(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("malformed id %q", raw),
			Err:  err,
		}
	}
	return id, nil
}

// pageBody is the envelope of every list response.
type pageBody struct {
	Total int         `json:"total"`
	Data  interface{} `json:"data"`
}
