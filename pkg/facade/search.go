package facade

import (
	"context"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"go.uber.org/zap"
)

// Search delivers the objects of class oc matching flt to handler, in the
// order the connector returns them, until handler returns false.
//
// When paging was requested and every object was delivered, the terminal
// SearchResult is returned and also passed to handler if it implements
// core.SearchResultsHandler. After an early stop the result is nil.
func (f *Facade) Search(ctx context.Context, oc objects.ObjectClass, flt filter.Filter, handler core.ResultsHandler, opts *objects.OperationOptions) (*objects.SearchResult, error) {
	if handler == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "results handler is required").
			WithDetail("operation", string(core.OpSearch))
	}

	var result *objects.SearchResult
	err := f.invoke(ctx, classCall(core.OpSearch, oc), func(ctx context.Context, conn core.PoolableConnector) error {
		op, err := as[core.SearchOp](conn, core.OpSearch)
		if err != nil {
			return err
		}

		z := normalizerFor(conn, oc)
		flt := z.filter(flt)

		var queries []filter.Query
		if flt != nil {
			if tr := op.CreateFilterTranslator(oc, opts); tr != nil {
				queries = tr.Translate(flt)
			}
		}
		if len(queries) == 0 {
			queries = []filter.Query{nil}
		}

		collector := &searchCollector{
			caller: handler,
			z:      z,
			filter: flt,
			opts:   opts,
			logger: f.logger,
		}
		if len(queries) > 1 {
			collector.seen = make(map[string]struct{})
		}

		for _, q := range queries {
			collector.reported = false
			if err := op.ExecuteQuery(ctx, oc, q, collector, opts); err != nil {
				return err
			}
			if collector.stopped {
				return nil
			}
		}

		if opts.PageSize() > 0 {
			result = collector.result
			if result == nil {
				result = objects.NewSearchResult("", objects.NoCount)
			}
			if rh, ok := handler.(core.SearchResultsHandler); ok {
				rh.HandleResult(result)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetObject returns the object with uid, or nil when it does not exist.
func (f *Facade) GetObject(ctx context.Context, oc objects.ObjectClass, uid objects.Uid, opts *objects.OperationOptions) (*objects.ConnectorObject, error) {
	if err := checkUid(oc, uid); err != nil {
		return nil, err
	}

	// paging does not apply to a single-object lookup
	b := objects.FromOptions(opts)
	b.SetPageSize(0).SetPagedResultsCookie("").SetPagedResultsOffset(0)

	var found *objects.ConnectorObject
	_, err := f.Search(ctx, oc, filter.UidEquals(uid), core.ResultsHandlerFunc(func(obj *objects.ConnectorObject) bool {
		found = obj
		return false
	}), b.Build())
	if err != nil {
		return nil, err
	}
	return found, nil
}

// searchCollector sits between the connector and the caller's handler.
type searchCollector struct {
	caller core.ResultsHandler
	z      normalizer
	filter filter.Filter
	opts   *objects.OperationOptions
	logger *zap.Logger

	seen     map[string]struct{}
	stopped  bool
	reported bool
	result   *objects.SearchResult
}

func (s *searchCollector) Handle(obj *objects.ConnectorObject) bool {
	if s.stopped {
		return false
	}
	if obj == nil {
		return true
	}

	obj = s.z.object(obj)
	if !filter.Accept(s.filter, obj) {
		return true
	}
	if s.seen != nil {
		key := obj.Uid().Value
		if _, dup := s.seen[key]; dup {
			return true
		}
		s.seen[key] = struct{}{}
	}

	if !s.caller.Handle(trim(obj, s.opts)) {
		s.stopped = true
		return false
	}
	return true
}

func (s *searchCollector) HandleResult(r *objects.SearchResult) {
	switch {
	case s.stopped:
		s.logger.Warn("search result reported after handler stop dropped")
	case s.reported:
		s.logger.Warn("duplicate search result dropped",
			zap.String("cookie", r.PagedResultsCookie))
	default:
		s.reported = true
		s.result = r
	}
}

// trim keeps __UID__, __NAME__ and the attributes named by attributesToGet.
func trim(obj *objects.ConnectorObject, opts *objects.OperationOptions) *objects.ConnectorObject {
	if opts.AttributesToGet() == nil {
		return obj
	}
	b := objects.NewConnectorObjectBuilder().
		SetObjectClass(obj.ObjectClass()).
		SetUid(obj.Uid()).
		SetName(obj.Name())
	for _, a := range obj.Attributes() {
		if a.Is(objects.UidAttr) || a.Is(objects.NameAttr) || !opts.Wants(a.Name) {
			continue
		}
		b.AddAttributes(a)
	}
	out, err := b.Build()
	if err != nil {
		return obj
	}
	return out
}
