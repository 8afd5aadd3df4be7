/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
)

// Thresholds drive project recommendations.
type Thresholds struct {
	BlockImpactAlertPct   float64 // member block impact above this is flagged
	ExternalIncidentAlert int     // external block incidents above this are flagged
	GoodEfficiency        float64 // team efficiency above this earns a congratulation
}

func DefaultThresholds() Thresholds {
	return Thresholds{BlockImpactAlertPct: 20, ExternalIncidentAlert: 10, GoodEfficiency: 1.0}
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days is the period length in days, never below one.
func (p Period) Days() float64 {
	d := p.End.Sub(p.Start).Hours() / 24
	if d < 1 {
		return 1
	}
	return d
}

type TaskSummary struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	EstimatedSize  domain.Size `json:"estimatedSize"`
	EstimatedHours float64     `json:"estimatedHours"`
	ActualHours    float64     `json:"actualHours"`
	BlockedHours   float64     `json:"blockedHours"`
	EffectiveHours float64     `json:"effectiveHours"`
	Efficiency     *float64    `json:"efficiency"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
}

type Throughput struct {
	TasksCompleted      int           `json:"tasksCompleted"`
	TotalEstimatedHours float64       `json:"totalEstimatedHours"`
	TotalActualHours    float64       `json:"totalActualHours"`
	TotalBlockedHours   float64       `json:"totalBlockedHours"`
	TotalEffectiveHours float64       `json:"totalEffectiveHours"`
	AvgEfficiency       *float64      `json:"avgEfficiency"`
	Throughput          float64       `json:"throughput"`
	Tasks               []TaskSummary `json:"tasks"`
}

type Quality struct {
	CompletedTasks    int      `json:"completedTasks"`
	ValidatedTasks    int      `json:"validatedTasks"`
	BlockedTasks      int      `json:"blockedTasks"`
	QualityScore      *float64 `json:"qualityScore"`
	BlockedPercentage float64  `json:"blockedPercentage"`
}

type SizeBucket struct {
	Size           domain.Size `json:"size"`
	Count          int         `json:"count"`
	EstimatedHours float64     `json:"estimatedHours"`
	ActualHours    float64     `json:"actualHours"`
}

// Complexity holds one bucket per size, in domain.Sizes order.
type Complexity []SizeBucket

func (c Complexity) Bucket(s domain.Size) SizeBucket {
	for _, b := range c {
		if b.Size == s {
			return b
		}
	}
	return SizeBucket{Size: s}
}

type BlockTypeStats struct {
	Count      int     `json:"count"`
	TotalHours float64 `json:"totalHours"`
}

type LongestBlock struct {
	TaskID       string           `json:"taskId"`
	TaskTitle    string           `json:"taskTitle"`
	BlockedBy    domain.BlockType `json:"blockedBy"`
	Reason       string           `json:"reason"`
	Duration     float64          `json:"duration"`
	BlockedSince time.Time        `json:"blockedSince"`
	BlockedUntil *time.Time       `json:"blockedUntil,omitempty"`
}

type BlockAnalysis struct {
	ByType                map[domain.BlockType]BlockTypeStats `json:"byType"`
	TotalBlockIncidents   int                                 `json:"totalBlockIncidents"`
	TotalBlockedHours     float64                             `json:"totalBlockedHours"`
	AvgBlockDuration      float64                             `json:"avgBlockDuration"`
	LongestBlock          *LongestBlock                       `json:"longestBlock"`
	MostCommonBlockReason string                              `json:"mostCommonBlockReason"`
}

// MostCommonType is the block type with the most incidents, BlockNone when
// there were none. Ties go to the earlier type in domain.BlockTypes.
func (b BlockAnalysis) MostCommonType() domain.BlockType {
	best, n := domain.BlockNone, 0
	for _, t := range domain.BlockTypes {
		if s := b.ByType[t]; s.Count > n {
			best, n = t, s.Count
		}
	}
	return best
}

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

type Trend struct {
	Current   *float64       `json:"current"`
	Previous  *float64       `json:"previous"`
	Ratio     float64        `json:"ratio"`
	Direction TrendDirection `json:"direction"`
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserReport struct {
	User               UserRef       `json:"user"`
	Period             Period        `json:"period"`
	Throughput         Throughput    `json:"throughput"`
	Quality            Quality       `json:"quality"`
	Complexity         Complexity    `json:"complexity"`
	AdjustedEfficiency *float64      `json:"adjustedEfficiency"`
	BlockAnalysis      BlockAnalysis `json:"blockAnalysis"`
	BlockImpact        float64       `json:"blockImpact"`
	Trend              Trend         `json:"trend"`
}

type MemberSlice struct {
	User                UserRef          `json:"user"`
	Role                string           `json:"role"`
	TasksCompleted      int              `json:"tasksCompleted"`
	Throughput          float64          `json:"throughput"`
	TotalActualHours    float64          `json:"totalActualHours"`
	TotalBlockedHours   float64          `json:"totalBlockedHours"`
	AvgEfficiency       *float64         `json:"avgEfficiency"`
	BlockImpact         float64          `json:"blockImpact"`
	MostCommonBlockType domain.BlockType `json:"mostCommonBlockType"`
}

type ETA struct {
	TotalEstimatedHours     float64  `json:"totalEstimatedHours"`
	CompletedEstimatedHours float64  `json:"completedEstimatedHours"`
	RemainingHours          float64  `json:"remainingHours"`
	PredictedBlockedHours   float64  `json:"predictedBlockedHours"`
	PredictedEffectiveHours float64  `json:"predictedEffectiveHours"`
	AvgWeeklyRate           float64  `json:"avgWeeklyRate"`
	EstimatedWeeksRemaining *float64 `json:"estimatedWeeksRemaining"`
}

type ProjectReport struct {
	ProjectID       string        `json:"projectId"`
	Name            string        `json:"name"`
	Period          Period        `json:"period"`
	TotalTasks      int           `json:"totalTasks"`
	OpenTasks       int           `json:"openTasks"`
	Throughput      Throughput    `json:"throughput"`
	Quality         Quality       `json:"quality"`
	Complexity      Complexity    `json:"complexity"`
	BlockAnalysis   BlockAnalysis `json:"blockAnalysis"`
	BlockImpact     float64       `json:"blockImpact"`
	Members         []MemberSlice `json:"members"`
	ETA             ETA           `json:"eta"`
	Recommendations []string      `json:"recommendations"`
}

type GlobalMetrics struct {
	TotalTasks          int      `json:"totalTasks"`
	CompletedTasks      int      `json:"completedTasks"`
	CompletedInPeriod   int      `json:"completedInPeriod"`
	PendingTasks        int      `json:"pendingTasks"`
	OverdueTasks        int      `json:"overdueTasks"`
	CompletionRate      float64  `json:"completionRate"`
	TotalEstimatedHours float64  `json:"totalEstimatedHours"`
	TotalActualHours    float64  `json:"totalActualHours"`
	TotalBlockedHours   float64  `json:"totalBlockedHours"`
	TotalEffectiveHours float64  `json:"totalEffectiveHours"`
	AvgEfficiency       *float64 `json:"avgEfficiency"`
	BlockImpact         float64  `json:"blockImpact"`
	Users               int      `json:"users"`
	Projects            int      `json:"projects"`
}

type UserMetrics struct {
	User                UserRef          `json:"user"`
	AssignedTasks       int              `json:"assignedTasks"`
	CompletedTasks      int              `json:"completedTasks"`
	CompletedInPeriod   int              `json:"completedInPeriod"`
	PendingTasks        int              `json:"pendingTasks"`
	OverdueTasks        int              `json:"overdueTasks"`
	CompletionRate      float64          `json:"completionRate"`
	Throughput          float64          `json:"throughput"`
	TotalActualHours    float64          `json:"totalActualHours"`
	TotalBlockedHours   float64          `json:"totalBlockedHours"`
	TotalEffectiveHours float64          `json:"totalEffectiveHours"`
	Efficiency          *float64         `json:"efficiency"`
	AdjustedEfficiency  *float64         `json:"adjustedEfficiency"`
	QualityScore        *float64         `json:"qualityScore"`
	BlockImpact         float64          `json:"blockImpact"`
	MostCommonBlockType domain.BlockType `json:"mostCommonBlockType"`
	Trend               Trend            `json:"trend"`
}

// Report is the aggregated report. It is built per request and only ever
// persisted as a rendered document.
type Report struct {
	Period           Period          `json:"period"`
	GeneratedAt      time.Time       `json:"generatedAt"`
	Global           GlobalMetrics   `json:"globalMetrics"`
	BlockAnalysis    BlockAnalysis   `json:"blockAnalysis"`
	Users            []UserMetrics   `json:"userMetrics"`
	Projects         []ProjectReport `json:"projectMetrics"`
	ExecutiveSummary string          `json:"executiveSummary,omitempty"`
}
