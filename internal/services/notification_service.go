package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/containrrr/shoutrrr"

	"github.com/finlog/backend/internal/logger"
)

// Notifier delivers operator-facing event messages.
type Notifier interface {
	Notify(title, message string)
}

// NotificationService fans ledger events out to shoutrrr service URLs
// (e.g. "discord://token@id", "generic+https://host/hook").
type NotificationService struct {
	urls []string
	send func(url, message string) error
	wg   sync.WaitGroup
}

// NewNotificationService returns a notifier for the given URLs. Blank entries are skipped.
func NewNotificationService(urls []string) *NotificationService {
	clean := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	return &NotificationService{
		urls: clean,
		send: func(url, message string) error { return shoutrrr.Send(url, message) },
	}
}

// Enabled reports whether at least one destination is configured.
func (s *NotificationService) Enabled() bool {
	return s != nil && len(s.urls) > 0
}

// Notify sends asynchronously to every destination; failures are logged only.
func (s *NotificationService) Notify(title, message string) {
	if !s.Enabled() {
		return
	}
	msg := fmt.Sprintf("%s\n\n%s", title, message)
	for i, url := range s.urls {
		s.wg.Add(1)
		go func(idx int, u string) {
			defer s.wg.Done()
			if err := s.send(u, msg); err != nil {
				logger.Log().WithError(err).WithField("destination", idx).Warn("failed to send notification")
			}
		}(i, url)
	}
}

// Wait blocks until in-flight notifications finish.
func (s *NotificationService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// TestDestination sends a fixed test message synchronously to url.
func (s *NotificationService) TestDestination(url string) error {
	return s.send(url, "Test notification from Finlog")
}
