package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

func (s *Service) SalesReport(ctx context.Context, query domain.ReportQuery) (domain.SalesReport, error) {
	started := time.Now()
	report, err := s.reports.SalesReport(ctx, query)
	if err != nil {
		return domain.SalesReport{}, err
	}
	s.metrics.ObserveReport("sales", time.Since(started))
	return report, nil
}

// DrillDown returns a domain.DateDrillDown or a domain.ProductDrillDown
// depending on query.Type.
func (s *Service) DrillDown(ctx context.Context, query domain.DrillDownQuery) (any, error) {
	started := time.Now()
	kind := strings.TrimSpace(query.Type)

	var (
		result any
		err    error
	)
	switch kind {
	case domain.DrillDownDate:
		if strings.TrimSpace(query.Date) == "" {
			return nil, fmt.Errorf("%w: date is required", store.ErrValidation)
		}
		result, err = s.reports.DateDrillDown(ctx, strings.TrimSpace(query.Date))
	case domain.DrillDownProduct:
		if strings.TrimSpace(query.ProductName) == "" {
			return nil, fmt.Errorf("%w: product name is required", store.ErrValidation)
		}
		result, err = s.reports.ProductDrillDown(ctx, strings.TrimSpace(query.ProductName), query.StartDate, query.EndDate)
	default:
		return nil, fmt.Errorf("%w: drill-down type must be %q or %q", store.ErrValidation, domain.DrillDownDate, domain.DrillDownProduct)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReport("drilldown_"+kind, time.Since(started))
	return result, nil
}
