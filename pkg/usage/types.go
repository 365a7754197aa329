package usage

import (
	"fmt"
	"strings"
	"time"
)

const (
	// FreeLimit is the monthly download allowance without an active pro subscription.
	FreeLimit = 5
	// ProLimit stands in for "unlimited"; it is finite and acts as the ceiling.
	ProLimit = 999999
)

// Tier is a subscription level.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
)

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "ACTIVE"
	StatusInactive SubscriptionStatus = "INACTIVE"
	StatusPastDue  SubscriptionStatus = "PAST_DUE"
)

// Subscription links a user to a tier.
type Subscription struct {
	UserID string             `json:"userId"`
	Tier   Tier               `json:"tier"`
	Status SubscriptionStatus `json:"status"`
}

// User is the part of the user record the tracker needs. Subscription is nil
// when the user never subscribed.
type User struct {
	ID           string        `json:"id"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// IsPro reports whether the user has an active pro subscription.
func (u *User) IsPro() bool {
	return u.Subscription != nil &&
		u.Subscription.Status == StatusActive &&
		u.Subscription.Tier == TierPro
}

// Tier returns the effective tier.
func (u *User) Tier() Tier {
	if u.IsPro() {
		return TierPro
	}
	return TierFree
}

// Limit returns the monthly download limit for the user's effective tier.
func (u *User) Limit() int {
	if u.IsPro() {
		return ProLimit
	}
	return FreeLimit
}

// DownloadEvent records one successful download. Events are never updated.
type DownloadEvent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ExerciseID   string    `json:"exerciseId"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// UsageData is the current-month quota snapshot for a user.
type UsageData struct {
	IsPro              bool      `json:"isPro"`
	DownloadsUsed      int       `json:"downloadsUsed"`
	DownloadsRemaining int       `json:"downloadsRemaining"`
	DownloadsLimit     int       `json:"downloadsLimit"`
	CanDownload        bool      `json:"canDownload"`
	ResetDate          time.Time `json:"resetDate"`
}

// DownloadResult is the outcome of RecordDownload.
type DownloadResult struct {
	Success            bool   `json:"success"`
	RemainingDownloads int    `json:"remainingDownloads"`
	Error              string `json:"error,omitempty"`
}

// UsageStats summarizes a user's whole download history.
type UsageStats struct {
	TotalDownloads         int            `json:"totalDownloads"`
	DownloadsThisMonth     int            `json:"downloadsThisMonth"`
	MostDownloadedExercise string         `json:"mostDownloadedExercise,omitempty"`
	DailyDownloads         map[string]int `json:"dailyDownloads"`
	IsPro                  bool           `json:"isPro"`
	DownloadsLimit         int            `json:"downloadsLimit"`
	DownloadsRemaining     int            `json:"downloadsRemaining"`
}

// ResetResult is the outcome of ResetUsage.
type ResetResult struct {
	Success      bool   `json:"success"`
	DeletedCount int64  `json:"deletedCount"`
	Error        string `json:"error,omitempty"`
}

// Enforcement selects how RecordDownload guards the quota.
type Enforcement string

const (
	EnforcementStrict     Enforcement = "strict"
	EnforcementBestEffort Enforcement = "best_effort"
)

// ParseEnforcement parses a configuration value.
func ParseEnforcement(s string) (Enforcement, error) {
	switch e := Enforcement(strings.ToLower(strings.TrimSpace(s))); e {
	case EnforcementStrict, EnforcementBestEffort:
		return e, nil
	case "":
		return EnforcementStrict, nil
	default:
		return "", fmt.Errorf("unknown enforcement mode %q", s)
	}
}
