/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"math"
	"strings"
	"time"
)

type Size string

const (
	SizeXS Size = "XS"
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

// Sizes is the fixed bucket order used by complexity breakdowns and reports.
var Sizes = []Size{SizeXS, SizeS, SizeM, SizeL, SizeXL}

func (s Size) Valid() bool {
	switch s {
	case SizeXS, SizeS, SizeM, SizeL, SizeXL:
		return true
	}
	return false
}

type BlockType string

const (
	BlockNone        BlockType = "none"
	BlockExternal    BlockType = "external"
	BlockDependency  BlockType = "dependency"
	BlockApproval    BlockType = "approval"
	BlockInformation BlockType = "information"
)

// BlockTypes lists the block causes that are tracked (everything except none).
var BlockTypes = []BlockType{BlockExternal, BlockDependency, BlockApproval, BlockInformation}

func ParseBlockType(s string) (BlockType, bool) {
	bt := BlockType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range BlockTypes {
		if t == bt {
			return bt, true
		}
	}
	return "", false
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type BlockEpisode struct {
	BlockedBy    BlockType  `bson:"blockedBy" json:"blockedBy"`
	Duration     float64    `bson:"duration" json:"duration"` // hours
	Reason       string     `bson:"reason" json:"reason"`
	BlockedSince time.Time  `bson:"blockedSince" json:"blockedSince"`
	BlockedUntil *time.Time `bson:"blockedUntil,omitempty" json:"blockedUntil,omitempty"`
}

// Open reports whether the episode has not been closed yet.
func (b BlockEpisode) Open() bool { return b.BlockedUntil == nil }

type TimeEntry struct {
	ID       string    `bson:"id" json:"id"`
	UserID   string    `bson:"userId" json:"userId"`
	Hours    float64   `bson:"hours" json:"hours"`
	Note     string    `bson:"note,omitempty" json:"note,omitempty"`
	LoggedAt time.Time `bson:"loggedAt" json:"loggedAt"`
}

type EffortMetrics struct {
	EstimatedSize  Size           `bson:"estimatedSize" json:"estimatedSize"`
	EstimatedHours float64        `bson:"estimatedHours" json:"estimatedHours"`
	ActualHours    float64        `bson:"actualHours" json:"actualHours"`
	EffectiveHours float64        `bson:"effectiveHours" json:"effectiveHours"`
	BlockedBy      BlockType      `bson:"blockedBy" json:"blockedBy"`
	BlockHistory   []BlockEpisode `bson:"blockHistory" json:"blockHistory"`
	TimeTracking   []TimeEntry    `bson:"timeTracking" json:"timeTracking"`
}

func NewEffortMetrics() EffortMetrics {
	return EffortMetrics{EstimatedSize: SizeM, BlockedBy: BlockNone}
}

// Normalize applies defaults for missing fields and zeroes non-finite numbers
// so downstream arithmetic never sees NaN or Inf.
func (e EffortMetrics) Normalize() EffortMetrics {
	if !e.EstimatedSize.Valid() {
		e.EstimatedSize = SizeM
	}
	if e.BlockedBy == "" {
		e.BlockedBy = BlockNone
	}
	e.EstimatedHours = finite(e.EstimatedHours)
	e.ActualHours = finite(e.ActualHours)
	e.EffectiveHours = finite(e.EffectiveHours)
	if len(e.BlockHistory) > 0 {
		hist := make([]BlockEpisode, len(e.BlockHistory))
		copy(hist, e.BlockHistory)
		for i := range hist {
			hist[i].Duration = finite(hist[i].Duration)
		}
		e.BlockHistory = hist
	}
	return e
}

// BlockedHours is the total duration of all recorded block episodes.
func (e EffortMetrics) BlockedHours() float64 {
	sum := 0.0
	for _, b := range e.BlockHistory {
		sum += finite(b.Duration)
	}
	return sum
}

// IsBlocked reports whether the task currently carries a block cause.
func (e EffortMetrics) IsBlocked() bool {
	return e.BlockedBy != "" && e.BlockedBy != BlockNone
}

// Recompute derives actual hours from the time log and effective hours from
// actual minus blocked, clamped so that effective never exceeds actual.
func (e *EffortMetrics) Recompute() {
	actual := 0.0
	for _, t := range e.TimeTracking {
		actual += finite(t.Hours)
	}
	e.ActualHours = Round2(actual)
	eff := actual - e.BlockedHours()
	if eff < 0 {
		eff = 0
	}
	e.EffectiveHours = Round2(eff)
}

type Task struct {
	ID            string        `bson:"_id" json:"id"`
	Title         string        `bson:"title" json:"title"`
	ProjectID     string        `bson:"projectId" json:"projectId"`
	Assignees     []string      `bson:"assignees" json:"assignees"`
	Status        Status        `bson:"status" json:"status"`
	Completed     bool          `bson:"completed" json:"completed"`
	CompletedAt   *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Validated     bool          `bson:"validated" json:"validated"`
	DueDate       *time.Time    `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	EffortMetrics EffortMetrics `bson:"effortMetrics" json:"effortMetrics"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
}

func (t Task) AssignedTo(userID string) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

// CompletedWithin reports completion inside [start, end], both ends inclusive.
func (t Task) CompletedWithin(start, end time.Time) bool {
	if !t.Completed || t.CompletedAt == nil {
		return false
	}
	at := *t.CompletedAt
	return !at.Before(start) && !at.After(end)
}

// Overdue reports an open task whose due date passed before now.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

type EffortProfile struct {
	WeeklyHours     float64 `bson:"weeklyHours" json:"weeklyHours"`
	ExperienceLevel string  `bson:"experienceLevel" json:"experienceLevel"`
}

type User struct {
	ID            string         `bson:"_id" json:"id"`
	Name          string         `bson:"name" json:"name"`
	Email         string         `bson:"email" json:"email"`
	Role          Role           `bson:"role" json:"role"`
	EffortProfile *EffortProfile `bson:"effortProfile,omitempty" json:"effortProfile,omitempty"`
}

type Member struct {
	UserID string `bson:"userId" json:"userId"`
	Role   string `bson:"role" json:"role"`
}

type Project struct {
	ID      string   `bson:"_id" json:"id"`
	Name    string   `bson:"name" json:"name"`
	Members []Member `bson:"members" json:"members"`
}

type JobRun struct {
	ID         string     `bson:"_id" json:"id"`
	Kind       string     `bson:"kind" json:"kind"`
	StartedAt  time.Time  `bson:"startedAt" json:"started_at"`
	FinishedAt *time.Time `bson:"finishedAt,omitempty" json:"finished_at"`
	Success    bool       `bson:"success" json:"success"`
	Error      string     `bson:"error" json:"error"`
	ReportFile string     `bson:"reportFile" json:"report_file"`
	Delivered  int        `bson:"delivered" json:"delivered"`
	Failed     int        `bson:"failed" json:"failed"`
}

// Round2 rounds to two decimals; non-finite input yields 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
