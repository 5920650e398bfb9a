package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
)

// PushProvider delivers a rendered notification to a set of device tokens.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// NotificationService renders and delivers the engine's user-facing events:
// streak milestones, weekly rewards, shield deployments and broken streaks.
// Delivery is best-effort and respects the user's notification preference.
type NotificationService struct {
	store    *LocalStore
	provider PushProvider
}

func NewNotificationService(store *LocalStore) *NotificationService {
	return &NotificationService{store: store}
}

// SetPushProvider injects the push transport once it is available.
func (s *NotificationService) SetPushProvider(p PushProvider) {
	s.provider = p
}

func (s *NotificationService) send(ctx context.Context, title, body string, data map[string]string) error {
	if s.provider == nil {
		return nil
	}

	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.NotificationsEnabled {
		return nil
	}

	tokens, err := s.store.DeviceTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		log.Println("Notifications: no registered devices, skipping push")
		return nil
	}
	return s.provider.SendPush(ctx, tokens, title, body, data)
}

func (s *NotificationService) StreakMilestone(ctx context.Context, days int) error {
	return s.send(ctx,
		fmt.Sprintf("%d day streak!", days),
		fmt.Sprintf("You've hit your goal %d days in a row. Keep it going!", days),
		map[string]string{"type": "streak_milestone", "days": strconv.Itoa(days)},
	)
}

func (s *NotificationService) WeeklyReward(ctx context.Context, weeks int) error {
	return s.send(ctx,
		"Weekly reward earned",
		fmt.Sprintf("That's %d full weeks of goal days. Your reward is waiting.", weeks),
		map[string]string{"type": "weekly_reward", "weeks": strconv.Itoa(weeks)},
	)
}

func (s *NotificationService) StreakBroken(ctx context.Context, days int) error {
	return s.send(ctx,
		"Streak ended",
		fmt.Sprintf("Your %d day streak has ended. Today is a great day to start a new one.", days),
		map[string]string{"type": "streak_broken", "days": strconv.Itoa(days)},
	)
}

func (s *NotificationService) ShieldDeployed(ctx context.Context, date string) error {
	return s.send(ctx,
		"Streak shield used",
		fmt.Sprintf("A shield covered %s, so your streak is safe.", date),
		map[string]string{"type": "shield_deployed", "date": date},
	)
}
