package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
)

const orderingParam = "ordering"

// bindOrdering reads `?ordering=name,-total_owed` (the param may be repeated).
// A leading "-" sorts descending. Unknown fields are left to the service to drop.
func bindOrdering(ctx echo.Context) ([]core.DBOrdering, error) {
	var params []string
	if err := echo.QueryParamsBinder(ctx).Strings(orderingParam, &params).BindError(); err != nil {
		return nil, errors.Wrap(err, "binding ordering")
	}

	var orderings []core.DBOrdering
	for _, param := range params {
		for _, field := range strings.Split(param, ",") {
			field = strings.TrimSpace(field)
			descending := strings.HasPrefix(field, "-")
			field = strings.TrimPrefix(field, "-")
			if field == "" {
				continue
			}
			orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
	return orderings, nil
}
