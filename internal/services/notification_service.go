package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/util"
)

// NotificationService delivers operator alerts to shoutrrr URLs such as
// slack://, discord:// or generic+https://.
type NotificationService struct {
	urls    []string
	send    func(url, message string) error
	timeout time.Duration
}

const defaultNotifyTimeout = 5 * time.Second

func NewNotificationService(urls []string) *NotificationService {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	return &NotificationService{urls: cleaned, send: shoutrrr.Send, timeout: defaultNotifyTimeout}
}

// Enabled reports whether any destination is configured.
func (s *NotificationService) Enabled() bool { return len(s.urls) > 0 }

// Notify sends title and message to every destination. Delivery failures are
// logged and never returned to the caller. It waits at most s.timeout or
// until ctx is done; slower sends finish in the background.
func (s *NotificationService) Notify(ctx context.Context, title, message string) {
	if !s.Enabled() {
		return
	}
	msg := fmt.Sprintf("%s\n\n%s", title, message)

	var wg sync.WaitGroup
	for _, u := range s.urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := s.send(u, msg); err != nil {
				logger.Component("notify").WithError(err).
					WithField("service", util.SanitizeForLog(serviceScheme(u))).
					Warn("failed to send notification")
			}
		}(u)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Component("notify").Warn("notification still in flight when request ended")
	case <-timer.C:
		logger.Component("notify").WithField("timeout", s.timeout).Warn("notification still in flight after timeout")
	}
}

// serviceScheme keeps credentials embedded in shoutrrr URLs out of the logs.
func serviceScheme(u string) string {
	if i := strings.Index(u, "://"); i > 0 {
		return u[:i]
	}
	return "unknown"
}
