package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/loyalty"
	"posledger/backend/internal/metrics"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// Quote prices a cart for the register. The client sends the resulting
// amounts back unchanged in RecordSale.
func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (domain.Quote, error) {
	if err := validateItems(req.Items); err != nil {
		return domain.Quote{}, err
	}
	if req.PointsToUse < 0 {
		return domain.Quote{}, fmt.Errorf("%w: points to use must not be negative", store.ErrValidation)
	}

	tier := domain.TierBronze
	balance := int64(0)
	if id := strings.TrimSpace(req.CustomerID); id != "" {
		customer, err := s.repo.GetCustomer(ctx, id)
		if err != nil {
			return domain.Quote{}, err
		}
		if !customer.IsActive {
			return domain.Quote{}, fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
		}
		tier = customer.MembershipLevel
		balance = customer.Points
	}

	return loyalty.Calculate(loyalty.Subtotal(req.Items), tier, req.PointsToUse, balance), nil
}

// RecordSale validates the checkout, then hands the store a SaleRecord it
// applies in one transaction: sale, stock, customer, points, spend and tier.
func (s *Service) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.RecordSaleResponse, error) {
	sale, ref, err := s.validateSale(req)
	if err != nil {
		s.metrics.ObserveSale(metrics.StatusRejected, 0)
		return domain.RecordSaleResponse{}, err
	}

	record := domain.SaleRecord{
		Sale:       sale,
		Customer:   ref,
		NewID:      xid.New("cus"),
		EarnID:     xid.New("pts"),
		RedeemID:   xid.New("pts"),
		EarnExpiry: sale.CreatedAt.Add(loyalty.EarnExpiry),
	}

	recorded, customer, err := s.repo.RecordSale(ctx, record)
	if err != nil {
		if isBusinessError(err) {
			s.metrics.ObserveSale(metrics.StatusRejected, 0)
		} else {
			s.metrics.ObserveSale(metrics.StatusFailed, 0)
			log.Printf("[sale] WARN: failed to record sale id=%s: %v", sale.ID, err)
		}
		return domain.RecordSaleResponse{}, err
	}

	total, _ := recorded.TotalAmount.Float64()
	s.metrics.ObserveSale(metrics.StatusRecorded, total)
	if recorded.PointsEarned > 0 {
		s.metrics.AddPoints(string(domain.PointsEarn), recorded.PointsEarned)
	}
	if recorded.PointsUsed > 0 {
		s.metrics.AddPoints(string(domain.PointsRedeem), recorded.PointsUsed)
	}

	customerID := ""
	if customer != nil {
		customerID = customer.ID
	}
	s.logAudit(ctx, "sale_record", "sale", recorded.ID, fmt.Sprintf(
		"total=%s,payment=%s,customer=%s,points_used=%d,points_earned=%d",
		recorded.TotalAmount, recorded.PaymentMethod, customerID, recorded.PointsUsed, recorded.PointsEarned,
	))

	return domain.RecordSaleResponse{SaleID: recorded.ID, CustomerID: customerID}, nil
}

func (s *Service) validateSale(req domain.RecordSaleRequest) (domain.Sale, domain.CustomerRef, error) {
	if err := validateItems(req.Items); err != nil {
		return domain.Sale{}, domain.CustomerRef{}, err
	}

	subtotal := loyalty.Subtotal(req.Items)
	if !req.Subtotal.Equal(subtotal) {
		return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: subtotal %s does not match items %s", store.ErrValidation, req.Subtotal, subtotal)
	}
	if req.DiscountAmount.IsNegative() {
		return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: discount must not be negative", store.ErrValidation)
	}
	if req.PointsUsed < 0 || req.PointsEarned < 0 {
		return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: points must not be negative", store.ErrValidation)
	}
	total := subtotal.Sub(req.DiscountAmount).Sub(loyalty.PointsValue(req.PointsUsed))
	if !req.TotalAmount.Equal(total) {
		return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: total %s does not equal subtotal - discount - points (%s)", store.ErrValidation, req.TotalAmount, total)
	}
	if total.IsNegative() {
		return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: total must not be negative", store.ErrValidation)
	}

	method := defaultString(strings.TrimSpace(req.PaymentMethod), domain.PaymentCash)
	if !isSupportedPaymentMethod(method) {
		return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrValidation, method)
	}

	ref := domain.CustomerRef{
		ID:    strings.TrimSpace(req.CustomerID),
		Name:  strings.TrimSpace(req.CustomerName),
		Phone: strings.TrimSpace(req.CustomerPhone),
	}
	if ref.ID == "" && (ref.Name == "") != (ref.Phone == "") {
		return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: customer name and phone must be given together", store.ErrValidation)
	}
	if ref.ID != "" {
		ref.Name, ref.Phone = "", ""
	}
	if req.PointsUsed > 0 {
		if ref.IsZero() {
			return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: redeeming points requires a customer", store.ErrValidation)
		}
		if req.PointsUsed < loyalty.MinRedeemPoints {
			return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: at least %d points must be redeemed", store.ErrValidation, loyalty.MinRedeemPoints)
		}
		if capped := loyalty.MaxRedeemable(subtotal, req.PointsUsed); capped < req.PointsUsed {
			return domain.Sale{}, domain.CustomerRef{}, fmt.Errorf("%w: at most %d%% of the subtotal can be paid with points", store.ErrValidation, loyalty.MaxRedeemPercentage)
		}
	}

	now := s.now()
	sale := domain.Sale{
		ID:               xid.New("sale"),
		Items:            req.Items,
		Subtotal:         subtotal,
		DiscountAmount:   req.DiscountAmount,
		PointsUsed:       req.PointsUsed,
		PointsEarned:     req.PointsEarned,
		TotalAmount:      total,
		PaymentMethod:    method,
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		TimeZone:         s.loc.String(),
		CreatedAt:        now,
	}
	if ref.IsZero() {
		sale.PointsEarned = 0
	}
	return sale, ref, nil
}

func validateItems(items []domain.SaleItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", store.ErrValidation)
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item %d has no product id", store.ErrValidation, i+1)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity must be at least 1", store.ErrValidation, i+1)
		}
		if item.Price.IsNegative() {
			return fmt.Errorf("%w: item %d price must not be negative", store.ErrValidation, i+1)
		}
	}
	return nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	s.localize(sale)
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}
	sales, err := s.repo.ListSales(ctx, store.SaleFilter{Descending: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	for i := range sales {
		s.localize(&sales[i])
	}
	return sales, nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCreditCard, domain.PaymentQRCode, domain.PaymentMobileBanking, domain.PaymentEWallet:
		return true
	default:
		return false
	}
}

// isBusinessError reports errors that reject a request rather than signal
// a broken collaborator.
func isBusinessError(err error) bool {
	for _, known := range []error{store.ErrValidation, store.ErrNotFound, store.ErrInsufficientPoints, store.ErrInsufficientStock, store.ErrDuplicatePhone} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
