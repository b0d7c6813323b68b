package main

import (
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakePublisher struct {
	mu      sync.Mutex
	topic   string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic, p.payload = topic, payload
	return p.err
}

func TestMQTTAlert_Send(t *testing.T) {
	pub := &fakePublisher{}
	a := MQTTAlert{Publisher: pub, TopicPrefix: "site/"}
	ev := Event{ID: "e1", Kind: PresenceDetected, Board: "door", At: time.Unix(0, 0).UTC()}

	if err := a.Send(ev, nil); err != nil {
		t.Fatalf("Send() err=%v", err)
	}
	if pub.topic != "site/door/events" {
		t.Errorf("topic = %q", pub.topic)
	}
	var got Event
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.ID != "e1" || got.Kind != PresenceDetected {
		t.Errorf("payload = %+v", got)
	}
}

func TestEventTopic(t *testing.T) {
	if got := eventTopic("", "door"); got != "door/events" {
		t.Errorf("eventTopic(\"\", door) = %q", got)
	}
	if got := eventTopic("groveboard", "door"); got != "groveboard/door/events" {
		t.Errorf("eventTopic(groveboard, door) = %q", got)
	}
}

func TestDisplayAlert_Send(t *testing.T) {
	b, disp, _ := newTestBoard(&seqProbe{})
	if err := (DisplayAlert{Board: b}).Send(Event{}, nil); err != nil {
		t.Fatalf("Send() err=%v", err)
	}
	if w := disp.writes[1]; len(w) != 1 || strings.TrimSpace(w[0]) != "Motion detected" {
		t.Errorf("line 1 writes = %q", w)
	}
	if c := disp.lastColor(); c != [3]uint8{255, 0, 0} {
		t.Errorf("color = %v, want red", c)
	}
}

func TestInitAlertHandlers(t *testing.T) {
	b, _, _ := newTestBoard(&seqProbe{})

	cfg := DefaultConfig()
	cfg.Alerts = nil
	hs := initAlertHandlers(cfg, b, nil)
	if len(hs) != 1 || hs[0].Name() != "log" {
		t.Fatalf("default handlers = %v", hs)
	}

	cfg.Alerts = []AlertConfig{{Type: "display"}, {Type: "MQTT"}, {Type: "email", SMTPServer: "smtp", To: "a@b"}}
	hs = initAlertHandlers(cfg, b, &fakePublisher{})
	var names []string
	for _, h := range hs {
		names = append(names, h.Name())
	}
	if got := strings.Join(names, ","); got != "display,mqtt,email" {
		t.Fatalf("handlers = %s", got)
	}

	// mqtt without a publisher is skipped, leaving the log fallback.
	cfg.Alerts = []AlertConfig{{Type: "mqtt"}}
	hs = initAlertHandlers(cfg, b, nil)
	if len(hs) != 1 || hs[0].Name() != "log" {
		t.Fatalf("handlers without publisher = %v", hs)
	}
}

func TestRegisterAlerts_LogsFailures(t *testing.T) {
	logger := NewEventLogger(filepath.Join(t.TempDir(), "events.log"))
	d := NewDispatcher("door")
	pub := &fakePublisher{err: errors.New("broker down")}
	registerAlerts(d, []AlertHandler{LogAlert{}, MQTTAlert{Publisher: pub}}, logger)

	d.Emit(PresenceDetected)
	d.Wait()

	lines, err := logger.Tail(0)
	if err != nil {
		t.Fatalf("Tail() err=%v", err)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "alert: presence_detected on door") {
		t.Errorf("log alert missing from %q", joined)
	}
	if !strings.Contains(joined, "alert handler mqtt error: broker down") {
		t.Errorf("mqtt failure missing from %q", joined)
	}
}

func TestEmailAlert_StalledServerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		// Accept and never send the greeting.
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1)
		conn.Read(buf)
	}()

	a := EmailAlert{
		SMTPServer: "127.0.0.1",
		SMTPPort:   ln.Addr().(*net.TCPAddr).Port,
		From:       "board@example.net",
		To:         "ops@example.net",
		Timeout:    50 * time.Millisecond,
	}
	start := time.Now()
	err = a.Send(Event{ID: "e1", Kind: PresenceDetected, Board: "door"}, nil)
	if err == nil {
		t.Fatal("Send() to a silent server succeeded")
	}
	if waited := time.Since(start); waited > 2*time.Second {
		t.Errorf("Send() returned after %v with a 50ms timeout", waited)
	}
}
