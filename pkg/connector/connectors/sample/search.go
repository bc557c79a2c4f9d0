package sample

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
)

// queryBuilder expresses filters the resource evaluates natively. Queries
// are filters themselves; CONTAINS_ALL_VALUES is left to the framework.
type queryBuilder struct{}

func (queryBuilder) Comparison(f *filter.AttributeFilter, not bool) (filter.Filter, bool) {
	if f.Op == filter.OpContainsAllValues {
		return nil, false
	}
	if not {
		return filter.Not(f), true
	}
	return f, true
}

func (queryBuilder) And(left, right filter.Filter) (filter.Filter, bool) {
	return filter.And(left, right), true
}

func (queryBuilder) Or(left, right filter.Filter) (filter.Filter, bool) {
	return filter.Or(left, right), true
}

// CreateFilterTranslator returns the translator for resource-side filters.
func (c *Connector) CreateFilterTranslator(objects.ObjectClass, *objects.OperationOptions) filter.Translator {
	return filter.NewTranslator[filter.Filter](queryBuilder{})
}

// ExecuteQuery streams matching objects ordered by uid. With a page size the
// cookie is the offset of the next page.
func (c *Connector) ExecuteQuery(ctx context.Context, oc objects.ObjectClass, query filter.Query, handler core.ResultsHandler, opts *objects.OperationOptions) error {
	res, err := c.readyFor(ctx, schema.OpSearch, oc)
	if err != nil {
		return err
	}
	s, err := c.Schema(ctx)
	if err != nil {
		return err
	}
	info, _ := s.FindObjectClassInfo(oc)

	var f filter.Filter
	if query != nil {
		var ok bool
		if f, ok = query.(filter.Filter); !ok {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("unexpected query type %T", query))
		}
	}

	var matched []*objects.ConnectorObject
	for _, obj := range res.List(oc) {
		if filter.Accept(f, obj) {
			matched = append(matched, obj)
		}
	}

	start, err := pageStart(opts)
	if err != nil {
		return err
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	pageSize := opts.PageSize()
	if pageSize > 0 && start+pageSize < end {
		end = start + pageSize
	}

	for _, obj := range matched[start:end] {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "search cancelled")
		}
		if !handler.Handle(project(info, obj, opts)) {
			return nil
		}
	}

	if pageSize > 0 {
		if rh, ok := handler.(core.SearchResultsHandler); ok {
			cookie := ""
			if end < len(matched) {
				cookie = strconv.Itoa(end)
			}
			rh.HandleResult(objects.NewSearchResult(cookie, len(matched)-end))
		}
	}
	return nil
}

// pageStart reads the cookie, or the 1-based pagedResultsOffset.
func pageStart(opts *objects.OperationOptions) (int, error) {
	if cookie := opts.PagedResultsCookie(); cookie != "" {
		n, err := strconv.Atoi(cookie)
		if err != nil || n < 0 {
			return 0, errors.New(errors.ErrorTypeValidation, fmt.Sprintf("invalid paged results cookie %q", cookie)).
				WithDetail("option", objects.OptionPagedResultsCookie)
		}
		return n, nil
	}
	if offset := opts.PagedResultsOffset(); offset > 1 {
		return offset - 1, nil
	}
	return 0, nil
}
