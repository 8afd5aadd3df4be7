/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func dial(t *testing.T, srvURL, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http") + "/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	return ws
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_PublishReachesClients(t *testing.T) {
	h := NewHub(zerolog.Nop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	all := dial(t, srv.URL, "")
	defer all.Close()
	tasksOnly := dial(t, srv.URL, "?types=task.updated")
	defer tasksOnly.Close()
	waitClients(t, h, 2)

	h.Publish(EventReportGenerated, map[string]any{"file": "effort-report-20250308-093015-042.pdf"})
	h.Publish(EventTaskUpdated, map[string]any{"id": "t1"})

	var e Event
	_ = all.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := all.ReadJSON(&e); err != nil || e.Type != EventReportGenerated || e.ID == "" {
		t.Fatalf("unexpected first event %+v err=%v", e, err)
	}
	_ = tasksOnly.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := tasksOnly.ReadJSON(&e); err != nil || e.Type != EventTaskUpdated {
		t.Fatalf("filtered client got %+v err=%v", e, err)
	}
}

func TestHub_PublishDoesNotBlockOnSlowClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	slow := &client{ch: make(chan Event, 1), filter: map[string]bool{}}
	h.add(slow)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(EventTaskUpdated, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full client buffer")
	}
	if len(slow.ch) != 1 {
		t.Fatalf("expected buffer to hold one event, got %d", len(slow.ch))
	}
}
