package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/madrasa/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Get returns the ordering requested for field, if any.
func (ord Ordering) Get(field string) (core.DBOrdering, bool) {
	for _, o := range ord.Orderings {
		if o.Field == field {
			return o, true
		}
	}
	return core.DBOrdering{}, false
}
