package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EnvAndDefaults(t *testing.T) {
	t.Setenv("REPORT_RECIPIENTS", " a@example.com, ,b@example.com ")
	t.Setenv("REPORT_PERIOD_DAYS", "not-a-number")
	t.Setenv("REMINDER_WINDOW", "48h")
	t.Setenv("TELEGRAM_CHAT_IDS", "12,x,34")
	t.Setenv("REPORT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if len(cfg.ReportRecipients) != 2 || cfg.ReportRecipients[1] != "b@example.com" {
		t.Fatalf("recipients: %#v", cfg.ReportRecipients)
	}
	if cfg.ReportPeriodDays != 7 {
		t.Fatalf("bad int should fall back to default, got %d", cfg.ReportPeriodDays)
	}
	if cfg.ReminderWindow != 48*time.Hour {
		t.Fatalf("window: %v", cfg.ReminderWindow)
	}
	if len(cfg.TelegramChatIDs) != 2 {
		t.Fatalf("chat ids: %#v", cfg.TelegramChatIDs)
	}
	if cfg.ReportCron != "0 8 * * MON" {
		t.Fatalf("default cron: %q", cfg.ReportCron)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	body := `
report:
  title: Weekly Effort
  cron: "30 7 * * FRI"
  recipients: [lead@example.com, pm@example.com]
thresholds:
  block_impact_pct: 35
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REPORT_CONFIG_FILE", path)
	t.Setenv("REPORT_RECIPIENTS", "env@example.com")

	cfg := Load()
	if cfg.ReportCron != "30 7 * * FRI" || cfg.ReportTitle != "Weekly Effort" {
		t.Fatalf("overlay not applied: %#v", cfg)
	}
	if len(cfg.ReportRecipients) != 2 || cfg.ReportRecipients[0] != "lead@example.com" {
		t.Fatalf("recipients: %#v", cfg.ReportRecipients)
	}
	if cfg.BlockImpactAlertPct != 35 || cfg.ExternalIncidentAlert != 10 {
		t.Fatalf("thresholds: %v %v", cfg.BlockImpactAlertPct, cfg.ExternalIncidentAlert)
	}
}
