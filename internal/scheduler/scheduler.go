package scheduler

import (
	"fmt"
	"log"

	"idealista-watcher/internal/config"
	"idealista-watcher/internal/extract"
	"idealista-watcher/internal/fetcher"
	"idealista-watcher/internal/storage"
	"idealista-watcher/internal/watcher"

	"github.com/robfig/cron/v3"
)

// Scheduler handles periodic watch runs and the daily refresh job
type Scheduler struct {
	cron      *cron.Cron
	watcher   *watcher.Watcher
	store     storage.Store
	fetcher   *fetcher.Fetcher
	config    *config.Config
	isRunning bool
}

// NewScheduler creates a new scheduler
func NewScheduler(w *watcher.Watcher, store storage.Store, f *fetcher.Fetcher, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		watcher: w,
		store:   store,
		fetcher: f,
		config:  cfg,
	}
}

// Start registers the watch interval job and, if enabled, the daily
// refresh job, then starts the cron loop.
func (s *Scheduler) Start() error {
	if s.config.Watcher.CheckIntervalMinutes > 0 {
		spec := fmt.Sprintf("@every %dm", s.config.Watcher.CheckIntervalMinutes)
		_, err := s.cron.AddFunc(spec, func() {
			if _, err := s.watcher.RunOnce(); err != nil {
				log.Printf("Scheduler: Watch run failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
		log.Printf("Scheduler: Watch job registered (%s)", spec)
	}

	if s.config.Watcher.DailyRunEnabled {
		cronSpec := s.parseDailyRunTime(s.config.Watcher.DailyRunTime)
		_, err := s.cron.AddFunc(cronSpec, func() {
			log.Println("Scheduler: Starting daily refresh job...")
			if err := s.runDailyRefresh(); err != nil {
				log.Printf("Scheduler: Daily refresh failed: %v", err)
			} else {
				log.Println("Scheduler: Daily refresh completed successfully")
			}
		})
		if err != nil {
			return err
		}
		log.Printf("Scheduler: Daily refresh at %s (cron: %s)", s.config.Watcher.DailyRunTime, cronSpec)
	}

	s.cron.Start()
	s.isRunning = true
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: Stopped")
	}
}

// runDailyRefresh re-fetches every stored listing. Listings whose page
// no longer yields a valid record are marked as removed.
func (s *Scheduler) runDailyRefresh() error {
	if s.store == nil {
		log.Println("Scheduler: No store configured, skipping daily refresh")
		return nil
	}

	listings, err := s.store.GetAll()
	if err != nil {
		return err
	}
	log.Printf("Scheduler: Found %d listings to refresh", len(listings))

	successCount := 0
	errorCount := 0
	var removedIDs []string

	for i, l := range listings {
		if !l.IsActive() {
			continue
		}
		log.Printf("Scheduler: [%d/%d] Refreshing listing %s", i+1, len(listings), l.ID)

		html, err := s.fetcher.FetchHTML(l.URL, "")
		if err != nil {
			log.Printf("Scheduler: Failed to fetch listing %s: %v", l.ID, err)
			errorCount++
			continue
		}

		updated, err := extract.Parse(html, l.URL)
		if err != nil || !updated.Valid() {
			log.Printf("Scheduler: Listing %s no longer extractable, marking as removed", l.ID)
			removedIDs = append(removedIDs, l.ID)
			continue
		}

		updated.ID = l.ID
		if err := s.store.Append(updated); err != nil {
			log.Printf("Scheduler: Failed to save listing %s: %v", l.ID, err)
			errorCount++
			continue
		}
		successCount++
	}

	if len(removedIDs) > 0 {
		if err := s.store.MarkRemoved(removedIDs); err != nil {
			log.Printf("Scheduler: Failed to mark removed listings: %v", err)
		}
	}

	log.Printf("Scheduler: Daily refresh completed. Success: %d, Errors: %d, Removed: %d",
		successCount, errorCount, len(removedIDs))
	return nil
}

// RunNow immediately executes one watch run (for manual trigger)
func (s *Scheduler) RunNow() (*watcher.Stats, error) {
	log.Println("Scheduler: Manual trigger - starting watch run...")
	return s.watcher.RunOnce()
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "09:00" -> "0 9 * * *" (run at 9:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	log.Printf("Scheduler: Failed to parse time '%s', using default 09:00", timeStr)
	return "0 9 * * *"
}
