package models

import "time"

type JobName string

const (
	JobScrape            JobName = "scrape"
	JobEnrich            JobName = "enrich"
	JobFollowUpReminders JobName = "follow_up_reminders"
	JobSubscriptionSweep JobName = "subscription_sweep"
)

func (j JobName) Valid() bool {
	switch j {
	case JobScrape, JobEnrich, JobFollowUpReminders, JobSubscriptionSweep:
		return true
	}
	return false
}

type RunTrigger string

const (
	TriggerCron   RunTrigger = "cron"
	TriggerManual RunTrigger = "manual"
	TriggerCLI    RunTrigger = "cli"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

type AutomationRun struct {
	ID         int64          `json:"id"`
	Job        JobName        `json:"job"`
	Trigger    RunTrigger     `json:"trigger"`
	Status     RunStatus      `json:"status"`
	Stats      map[string]any `json:"stats,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}
