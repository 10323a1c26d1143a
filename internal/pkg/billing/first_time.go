package billing

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
)

// IsFirstTimeCustomer reports whether the user has no purchases, no ritual
// purchases and no subscription above the free tier. It only decides whether
// a welcome notification is sent.
func (s *Service) IsFirstTimeCustomer(ctx context.Context, userID string) (bool, error) {
	purchases, err := s.repo.CountPurchases(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count purchases: %w", err)
	}
	if purchases > 0 {
		return false, nil
	}

	rituals, err := s.repo.CountRitualPurchases(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count ritual purchases: %w", err)
	}
	if rituals > 0 {
		return false, nil
	}

	paid, err := s.repo.CountPaidSubscriptions(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count subscriptions: %w", err)
	}
	return paid == 0, nil
}

// firstTime treats lookup errors as "not first time" so a broken read only
// skips the welcome message.
func (s *Service) firstTime(ctx context.Context, userID string) bool {
	first, err := s.IsFirstTimeCustomer(ctx, userID)
	if err != nil {
		log.Warnf("[Billing] First-time check for user %s failed: %v", userID, err)
		return false
	}
	return first
}
