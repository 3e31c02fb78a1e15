package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/loyalty"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	expireBatchSize     = 500
)

// EarnPoints credits points with the standard expiry.
func (s *Service) EarnPoints(ctx context.Context, customerID string, points int64, description string, saleID string) (domain.Customer, error) {
	if points <= 0 {
		return domain.Customer{}, fmt.Errorf("%w: earned points must be positive", store.ErrValidation)
	}
	now := s.now()
	expiry := now.Add(loyalty.EarnExpiry)
	customer, err := s.repo.AppendPoints(ctx, domain.PointsTransaction{
		ID:          xid.New("pts"),
		CustomerID:  strings.TrimSpace(customerID),
		Kind:        domain.PointsEarn,
		Points:      points,
		Description: defaultString(strings.TrimSpace(description), "points earned"),
		SaleID:      strings.TrimSpace(saleID),
		CreatedAt:   now,
		ExpiresAt:   &expiry,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.metrics.AddPoints(string(domain.PointsEarn), points)
	return *customer, nil
}

// RedeemPoints debits points. The balance check happens inside the store
// against the current row, never a snapshot.
func (s *Service) RedeemPoints(ctx context.Context, customerID string, points int64, description string, saleID string) (domain.Customer, error) {
	if points <= 0 {
		return domain.Customer{}, fmt.Errorf("%w: redeemed points must be positive", store.ErrValidation)
	}
	customer, err := s.repo.AppendPoints(ctx, domain.PointsTransaction{
		ID:          xid.New("pts"),
		CustomerID:  strings.TrimSpace(customerID),
		Kind:        domain.PointsRedeem,
		Points:      -points,
		Description: defaultString(strings.TrimSpace(description), "points redeemed"),
		SaleID:      strings.TrimSpace(saleID),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.metrics.AddPoints(string(domain.PointsRedeem), points)
	return *customer, nil
}

// AdjustPoints is the administrative override. The balance never goes
// below zero.
func (s *Service) AdjustPoints(ctx context.Context, customerID string, req domain.PointsAdjustRequest) (domain.PointsAdjustResponse, error) {
	description := strings.TrimSpace(req.Description)
	if req.Points == 0 {
		return domain.PointsAdjustResponse{}, fmt.Errorf("%w: adjustment must not be zero", store.ErrValidation)
	}
	if description == "" {
		return domain.PointsAdjustResponse{}, fmt.Errorf("%w: description is required", store.ErrValidation)
	}

	target, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.PointsAdjustResponse{}, err
	}

	entry := domain.PointsTransaction{
		ID:          xid.New("pts"),
		CustomerID:  target.ID,
		Kind:        domain.PointsAdjust,
		Points:      req.Points,
		Description: description,
		CreatedAt:   s.now(),
	}
	customer, err := s.repo.AppendPoints(ctx, entry)
	if err != nil {
		return domain.PointsAdjustResponse{}, err
	}

	s.metrics.AddPoints(string(domain.PointsAdjust), req.Points)
	s.logAudit(ctx, "points_adjust", "customer", customer.ID, fmt.Sprintf("points=%d,balance=%d,description=%s", req.Points, customer.Points, description))
	return domain.PointsAdjustResponse{Transaction: entry, Customer: *customer}, nil
}

// PointsHistory pages the ledger newest first. cursor is the NextCursor of
// the previous page, empty for the first one.
func (s *Service) PointsHistory(ctx context.Context, customerID string, limit int, cursor string) (domain.PointsHistoryResponse, error) {
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	after, err := decodeCursor(cursor)
	if err != nil {
		return domain.PointsHistoryResponse{}, err
	}

	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.PointsHistoryResponse{}, err
	}
	entries, err := s.repo.ListPoints(ctx, customer.ID, after, limit)
	if err != nil {
		return domain.PointsHistoryResponse{}, err
	}

	resp := domain.PointsHistoryResponse{
		CustomerID:   customer.ID,
		Balance:      customer.Points,
		Transactions: entries,
	}
	if len(entries) == limit {
		last := entries[len(entries)-1]
		resp.NextCursor = encodeCursor(domain.PointsCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return resp, nil
}

// ExpireDuePoints appends one expire row per due earn row. Earn rows whose
// points were already spent still get a zero row so they are not revisited.
func (s *Service) ExpireDuePoints(ctx context.Context) (domain.PointsExpireResponse, error) {
	now := s.now()
	var resp domain.PointsExpireResponse

	for {
		due, err := s.repo.ListDueEarnings(ctx, now, expireBatchSize)
		if err != nil {
			return resp, err
		}

		progressed := 0
		for _, earn := range due {
			expired, err := s.repo.ExpireEarning(ctx, earn, xid.New("pts"), now)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				log.Printf("[points] WARN: failed to expire earn id=%s customer=%s: %v", earn.ID, earn.CustomerID, err)
				continue
			}
			progressed++
			resp.Processed++
			resp.PointsExpired += -expired.Points
		}
		if len(due) < expireBatchSize || progressed == 0 {
			break
		}
	}

	if resp.PointsExpired > 0 {
		s.metrics.AddPoints(string(domain.PointsExpire), resp.PointsExpired)
	}
	s.logAudit(ctx, "points_expire", "points", "", fmt.Sprintf("processed=%d,points=%d", resp.Processed, resp.PointsExpired))
	return resp, nil
}

func encodeCursor(cursor domain.PointsCursor) string {
	raw, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(value string) (*domain.PointsCursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", store.ErrValidation)
	}
	var cursor domain.PointsCursor
	if err := json.Unmarshal(raw, &cursor); err != nil || cursor.ID == "" {
		return nil, fmt.Errorf("%w: malformed cursor", store.ErrValidation)
	}
	return &cursor, nil
}
