package projections

import (
	"context"

	customerStore "clinic/internal/adapters/storage/customer"
	"clinic/internal/application/listutil"
	"clinic/internal/domain/appointment"
	domainCustomer "clinic/internal/domain/customer"
)

// SearchLimit caps ranked search results.
const SearchLimit = 50

// GetCustomerListQuery carries query parameters. A non-empty Search switches
// from the paginated list to ranked search.
type GetCustomerListQuery struct {
	Search   string
	Location string
	Page     int
	PerPage  int
}

// GetCustomerListResult carries the query result.
type GetCustomerListResult struct {
	Customers []domainCustomer.SearchResult
	Page      listutil.PageInfo
}

// GetCustomerListDeps holds dependencies for GetCustomerList.
type GetCustomerListDeps struct {
	CustomerStore interface {
		CustomerLister
		CustomerCounter
		CustomerSearcher
	}
}

// QueryGetCustomerList lists customers by name, or ranks them against a search query.
// PRE: Search is empty or at least MinSearchLength characters
// POST: Search results are best match first and fit on one page
func QueryGetCustomerList(ctx context.Context, query GetCustomerListQuery, deps GetCustomerListDeps) (GetCustomerListResult, error) {
	if query.Location != "" && !appointment.ValidLocation(query.Location) {
		return GetCustomerListResult{}, appointment.ErrInvalidLocation
	}
	if query.Search != "" {
		if err := domainCustomer.ValidateQuery(query.Search); err != nil {
			return GetCustomerListResult{}, err
		}
		found, err := deps.CustomerStore.Search(ctx, query.Search, SearchLimit)
		if err != nil {
			return GetCustomerListResult{}, err
		}
		out := make([]domainCustomer.SearchResult, 0, len(found))
		for _, r := range found {
			if query.Location == "" || r.Location == query.Location {
				out = append(out, r)
			}
		}
		return GetCustomerListResult{Customers: out, Page: listutil.NewPageInfo(1, max(len(out), 1), len(out))}, nil
	}

	filter := customerStore.ListFilter{Location: query.Location}
	total, err := deps.CustomerStore.Count(ctx, filter)
	if err != nil {
		return GetCustomerListResult{}, err
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()
	customers, err := deps.CustomerStore.List(ctx, filter)
	if err != nil {
		return GetCustomerListResult{}, err
	}
	out := make([]domainCustomer.SearchResult, 0, len(customers))
	for _, c := range customers {
		out = append(out, domainCustomer.SearchResult{Customer: c})
	}
	return GetCustomerListResult{Customers: out, Page: page}, nil
}
