/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/HamedShams/effort-pulse/internal/metrics"
	"github.com/HamedShams/effort-pulse/internal/realtime"
	"github.com/HamedShams/effort-pulse/internal/report"
	"github.com/HamedShams/effort-pulse/internal/repo"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	kindGenerate  = "generate"
	kindEmail     = "email"
	kindScheduled = "scheduled-report"
)

type Mailer interface {
	SendHTML(ctx context.Context, to, subject, html, attachment string) error
}

type Summarizer interface {
	Enabled() bool
	Summarize(ctx context.Context, payload any) (string, error)
}

type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, text string) error
	SendMessagePlain(ctx context.Context, chatID int64, text string) error
}

type Publisher interface {
	Publish(eventType string, data any)
}

type Renderer interface {
	Render(rep *metrics.Report) (*report.Document, error)
}

type Storage interface {
	repo.Store
	repo.Ledger
}

type Service struct {
	cfg      config.Config
	log      zerolog.Logger
	store    Storage
	agg      *metrics.Aggregator
	renderer Renderer
	archive  *report.Archive
	mail     Mailer
	llm      Summarizer
	tg       Notifier
	pub      Publisher
	job      *jobState
	now      func() time.Time
}

// Deps groups the optional collaborators; nil LLM, Telegram and Publisher
// are allowed.
type Deps struct {
	Store    Storage
	Renderer Renderer
	Archive  *report.Archive
	Mail     Mailer
	LLM      Summarizer
	Telegram Notifier
	Pub      Publisher
}

func New(cfg config.Config, log zerolog.Logger, d Deps) (*Service, error) {
	js, err := newJobState()
	if err != nil {
		return nil, err
	}
	th := metrics.Thresholds{
		BlockImpactAlertPct:   cfg.BlockImpactAlertPct,
		ExternalIncidentAlert: cfg.ExternalIncidentAlert,
		GoodEfficiency:        cfg.GoodEfficiency,
	}
	s := &Service{
		cfg:      cfg,
		log:      log,
		store:    d.Store,
		agg:      metrics.NewAggregator(d.Store, th, log),
		renderer: d.Renderer,
		archive:  d.Archive,
		mail:     d.Mail,
		llm:      d.LLM,
		tg:       d.Telegram,
		pub:      d.Pub,
		job:      js,
		now:      time.Now,
	}
	s.agg.Now = func() time.Time { return s.now() }
	return s, nil
}

func (s *Service) publish(eventType string, data any) {
	if s.pub != nil {
		s.pub.Publish(eventType, data)
	}
}

// Period returns the window of the last days days ending now.
func (s *Service) Period(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = s.cfg.ReportPeriodDays
	}
	if days <= 0 {
		days = 7
	}
	end := s.now()
	return end.Add(-time.Duration(days) * 24 * time.Hour), end
}

// ReportSummary is the short form of a report returned to API callers.
type ReportSummary struct {
	Period           metrics.Period        `json:"period"`
	GeneratedAt      time.Time             `json:"generatedAt"`
	Global           metrics.GlobalMetrics `json:"globalMetrics"`
	BlockIncidents   int                   `json:"blockIncidents"`
	Users            int                   `json:"users"`
	Projects         int                   `json:"projects"`
	ExecutiveSummary string                `json:"executiveSummary,omitempty"`
}

type GenerateResult struct {
	Summary ReportSummary    `json:"summary"`
	File    *report.Document `json:"file"`
}

type DeliveryResult struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type EmailResult struct {
	Success bool             `json:"success"`
	Results []DeliveryResult `json:"results"`
	File    *report.Document `json:"file,omitempty"`
}

// GenerateReport aggregates and renders one report now.
func (s *Service) GenerateReport(ctx context.Context, start, end time.Time) (*GenerateResult, error) {
	if err := s.job.tryStart(kindGenerate); err != nil {
		return nil, err
	}
	defer s.job.finish()
	return s.generate(ctx, start, end)
}

func (s *Service) generate(ctx context.Context, start, end time.Time) (*GenerateResult, error) {
	if !end.After(start) {
		return nil, domain.Invalid("period end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	rep, err := s.agg.GenerateReport(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	rep.ExecutiveSummary = s.executiveSummary(ctx, rep)
	doc, err := s.renderer.Render(rep)
	if err != nil {
		return nil, err
	}
	res := &GenerateResult{
		Summary: ReportSummary{
			Period:           rep.Period,
			GeneratedAt:      rep.GeneratedAt,
			Global:           rep.Global,
			BlockIncidents:   rep.BlockAnalysis.TotalBlockIncidents,
			Users:            len(rep.Users),
			Projects:         len(rep.Projects),
			ExecutiveSummary: rep.ExecutiveSummary,
		},
		File: doc,
	}
	s.publish(realtime.EventReportGenerated, doc)
	return res, nil
}

// executiveSummary is best effort; the report renders without it.
func (s *Service) executiveSummary(ctx context.Context, rep *metrics.Report) string {
	if s.llm == nil || !s.llm.Enabled() {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpenAITimeout+5*time.Second)
	defer cancel()
	text, err := s.llm.Summarize(ctx, redactReport(rep))
	if err != nil {
		s.log.Warn().Err(err).Msg("executive summary failed; rendering without it")
		return ""
	}
	return text
}

// EmailReport generates a report and delivers it to each recipient in turn.
// The batch succeeds when at least one delivery does; when every delivery
// fails the result is still returned together with ErrAllDeliveriesFailed.
func (s *Service) EmailReport(ctx context.Context, recipients []string, start, end time.Time) (*EmailResult, error) {
	if len(recipients) == 0 {
		return nil, &domain.ConfigurationError{Reason: "no report recipients"}
	}
	if err := s.job.tryStart(kindEmail); err != nil {
		return nil, err
	}
	defer s.job.finish()
	return s.emailReport(ctx, recipients, start, end)
}

func (s *Service) emailReport(ctx context.Context, recipients []string, start, end time.Time) (*EmailResult, error) {
	gen, err := s.generate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	res := s.deliver(ctx, gen, recipients)
	s.publish(realtime.EventReportEmailed, res)
	if !res.Success {
		return res, fmt.Errorf("%w (%d recipients)", domain.ErrAllDeliveriesFailed, len(recipients))
	}
	return res, nil
}

func (s *Service) deliver(ctx context.Context, gen *GenerateResult, recipients []string) *EmailResult {
	subject := fmt.Sprintf("%s: %s to %s", s.cfg.ReportTitle,
		gen.Summary.Period.Start.Format("2006-01-02"), gen.Summary.Period.End.Format("2006-01-02"))
	body, err := reportEmailBody(s.cfg.ReportTitle, gen)
	if err != nil {
		s.log.Error().Err(err).Msg("report email body failed")
	}
	res := &EmailResult{File: gen.File, Results: make([]DeliveryResult, 0, len(recipients))}
	for _, to := range recipients {
		if err := s.mail.SendHTML(ctx, to, subject, body, gen.File.Path); err != nil {
			derr := &domain.DeliveryError{Recipient: to, Err: err}
			s.log.Error().Err(derr).Msg("report delivery failed")
			res.Results = append(res.Results, DeliveryResult{Recipient: to, Error: err.Error()})
			continue
		}
		res.Success = true
		res.Results = append(res.Results, DeliveryResult{Recipient: to, Success: true})
	}
	return res
}

// RunScheduledReport is the cron entry point: configured recipients, default
// period, recorded in the run ledger.
func (s *Service) RunScheduledReport(ctx context.Context) error {
	if err := s.job.tryStart(kindScheduled); err != nil {
		return err
	}
	defer s.job.finish()
	return s.runScheduled(ctx)
}

// StartScheduledReport takes the job slot before returning and runs the
// scheduled report in the background. A busy slot gives ErrJobInProgress.
func (s *Service) StartScheduledReport() error {
	if err := s.job.tryStart(kindScheduled); err != nil {
		return err
	}
	go func() {
		defer s.job.finish()
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout())
		defer cancel()
		if err := s.runScheduled(ctx); err != nil {
			s.log.Error().Err(err).Msg("manual run failed")
		}
	}()
	return nil
}

func (s *Service) jobTimeout() time.Duration {
	if s.cfg.JobTimeout > 0 {
		return s.cfg.JobTimeout
	}
	return 5 * time.Minute
}

func (s *Service) runScheduled(ctx context.Context) error {
	runID, err := s.store.StartJobRun(ctx, kindScheduled)
	if err != nil {
		s.log.Error().Err(err).Msg("start job run failed")
	}
	run := domain.JobRun{ID: runID, Kind: kindScheduled}
	defer func() {
		if runID == "" {
			return
		}
		if err := s.store.FinishJobRun(context.WithoutCancel(ctx), run); err != nil {
			s.log.Error().Err(err).Str("run", runID).Msg("finish job run failed")
		}
	}()

	s.log.Info().Strs("recipients", s.cfg.ReportRecipients).Msg("ScheduledReport: start")
	if len(s.cfg.ReportRecipients) == 0 {
		err := &domain.ConfigurationError{Reason: "REPORT_RECIPIENTS is empty"}
		run.Error = err.Error()
		s.log.Error().Err(err).Msg("scheduled report skipped")
		s.publish(realtime.EventJobFailed, run)
		return err
	}
	start, end := s.Period(0)
	res, err := s.emailReport(ctx, s.cfg.ReportRecipients, start, end)
	if res != nil {
		run.ReportFile = res.File.Filename
		for _, r := range res.Results {
			if r.Success {
				run.Delivered++
			} else {
				run.Failed++
			}
		}
	}
	if err != nil {
		run.Error = err.Error()
		s.publish(realtime.EventJobFailed, run)
		s.notify(ctx, fmt.Sprintf("%s failed: %v", s.cfg.ReportTitle, err))
		return err
	}
	run.Success = true
	s.notify(ctx, fmt.Sprintf("%s sent: %s, delivered to %d of %d recipients.",
		s.cfg.ReportTitle, run.ReportFile, run.Delivered, run.Delivered+run.Failed))
	s.log.Info().Str("file", run.ReportFile).Int("delivered", run.Delivered).Int("failed", run.Failed).Msg("ScheduledReport: done")
	return nil
}

func (s *Service) notify(ctx context.Context, text string) {
	if s.tg == nil || !s.tg.Enabled() {
		return
	}
	if err := s.tg.Notify(ctx, text); err != nil {
		s.log.Warn().Err(err).Msg("telegram notice failed")
	}
}

type ScheduleStatus struct {
	Schedule     string     `json:"schedule"`
	Timezone     string     `json:"timezone"`
	Recipients   []string   `json:"recipients"`
	PeriodDays   int        `json:"periodDays"`
	Running      bool       `json:"running"`
	RunningKind  string     `json:"runningKind,omitempty"`
	RunningSince *time.Time `json:"runningSince,omitempty"`
	NextRun      *time.Time `json:"nextRun,omitempty"`
}

func (s *Service) ScheduleStatus() ScheduleStatus {
	st := ScheduleStatus{
		Schedule:   s.cfg.ReportCron,
		Timezone:   s.cfg.TZ,
		Recipients: s.cfg.ReportRecipients,
		PeriodDays: s.cfg.ReportPeriodDays,
	}
	if st.Recipients == nil {
		st.Recipients = []string{}
	}
	running, kind, since := s.job.snapshot()
	if running {
		st.Running, st.RunningKind, st.RunningSince = true, kind, &since
	}
	if sched, err := cron.ParseStandard(s.cfg.ReportCron); err == nil {
		loc, err := time.LoadLocation(s.cfg.TZ)
		if err != nil {
			loc = time.UTC
		}
		next := sched.Next(s.now().In(loc))
		st.NextRun = &next
	}
	return st
}

func (s *Service) ListReports() ([]report.Entry, error) { return s.archive.List() }

func (s *Service) ReportPath(name string) (string, error) { return s.archive.Path(name) }

func (s *Service) DeleteReport(name string) error {
	if err := s.archive.Delete(name); err != nil {
		return err
	}
	s.log.Info().Str("file", name).Msg("report deleted")
	s.publish(realtime.EventReportDeleted, map[string]string{"filename": name})
	return nil
}

func (s *Service) GetLastRun(ctx context.Context) (*domain.JobRun, error) {
	return s.store.GetLastRun(ctx)
}

func (s *Service) UserReport(ctx context.Context, userID string, start, end time.Time) (*metrics.UserReport, error) {
	return s.agg.GenerateUserReport(ctx, userID, start, end)
}

func (s *Service) ProjectReport(ctx context.Context, projectID string, start, end time.Time) (*metrics.ProjectReport, error) {
	return s.agg.GenerateProjectReport(ctx, projectID, start, end)
}

// IsBusy reports whether err means a report job is already running.
func IsBusy(err error) bool { return errors.Is(err, domain.ErrJobInProgress) }
