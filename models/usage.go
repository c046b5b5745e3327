// ABOUTME: Usage metering models for the weekly AI recommendation quota
// ABOUTME: Defines the per-week counter document and the append-only usage event
package models

import (
	"fmt"
	"time"
)

// UsageCounter is the single counter document for one user and one week.
type UsageCounter struct {
	UserID      string    `json:"userId" dynamodbav:"userId"`
	WeekID      string    `json:"weekId" dynamodbav:"weekId"` // ISO date of the week's Sunday
	StartDate   time.Time `json:"startDate" dynamodbav:"startDate"`
	EndDate     time.Time `json:"endDate" dynamodbav:"endDate"`
	CallCount   int       `json:"callCount" dynamodbav:"callCount"`
	Created     time.Time `json:"created" dynamodbav:"created"`
	LastUpdated time.Time `json:"lastUpdated" dynamodbav:"lastUpdated"`
}

// CounterKey returns the document key for a user's weekly counter.
func CounterKey(userID, weekID string) string {
	return fmt.Sprintf("%s_%s", userID, weekID)
}

// Key returns the counter's document key.
func (c *UsageCounter) Key() string {
	return CounterKey(c.UserID, c.WeekID)
}

// UsageEvent records a single metered call. Events are never modified.
type UsageEvent struct {
	ID           string    `json:"id" dynamodbav:"id"`
	UserID       string    `json:"userId" dynamodbav:"userId"`
	Timestamp    time.Time `json:"timestamp" dynamodbav:"timestamp"`
	Type         string    `json:"type" dynamodbav:"type"`
	Model        string    `json:"model" dynamodbav:"model"`
	PromptTokens int       `json:"promptTokens" dynamodbav:"promptTokens"`
	OutputTokens int       `json:"outputTokens" dynamodbav:"outputTokens"`
}
