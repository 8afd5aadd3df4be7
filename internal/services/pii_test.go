/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/HamedShams/effort-pulse/internal/metrics"
)

func TestRedactReport_AliasesPeopleAndScrubsText(t *testing.T) {
	rep := &metrics.Report{
		Users: []metrics.UserMetrics{
			{User: metrics.UserRef{ID: "u1", Name: "Alice Smith", Email: "alice@example.com"}},
			{User: metrics.UserRef{ID: "u2", Name: "Bob", Email: "bob@example.com"}},
		},
		Projects: []metrics.ProjectReport{{
			Name:            "Apollo",
			Recommendations: []string{"Ask Alice Smith (alice@example.com, +1 555 123 4567) about https://example.com/x"},
		}},
		BlockAnalysis: metrics.BlockAnalysis{MostCommonBlockReason: "waiting on Bob, token: abcdEFGH1234"},
	}
	red := redactReport(rep)
	raw, err := json.Marshal(red)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(raw)
	for _, leak := range []string{"Alice", "Bob", "alice@example.com", "555 123", "https://example.com", "abcdEFGH1234", "u1"} {
		if strings.Contains(out, leak) {
			t.Fatalf("payload leaks %q: %s", leak, out)
		}
	}
	users := red["users"].([]map[string]any)
	if users[0]["user"] == users[1]["user"] {
		t.Fatalf("different people share an alias: %v", users)
	}
	projects := red["projects"].([]map[string]any)
	recs := projects[0]["recommendations"].([]string)
	if !strings.Contains(recs[0], users[0]["user"].(string)) {
		t.Fatalf("recommendation should carry the alias %v, got %q", users[0]["user"], recs[0])
	}
}

func TestRedactor_LongestNameFirst(t *testing.T) {
	rep := &metrics.Report{Users: []metrics.UserMetrics{
		{User: metrics.UserRef{Name: "Ann"}},
		{User: metrics.UserRef{Name: "Ann Lee"}},
	}}
	r := newRedactor(rep)
	got := r.scrub("Ann Lee reviewed it")
	if got != r.name("Ann Lee")+" reviewed it" {
		t.Fatalf("unexpected scrub %q", got)
	}
	if r.name("someone else") != "member" {
		t.Fatalf("unknown names fall back to member")
	}
}
