package main

// This file defines pluggable alert handlers for when motion is detected.

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// defaultSMTPTimeout bounds a whole mail exchange when none is configured.
const defaultSMTPTimeout = 30 * time.Second

// AlertHandler represents a mechanism that can send an alert when the board
// raises an event.  Implementations may deliver notifications via email,
// MQTT, the board's own display or other channels.  If an error is returned,
// the caller logs it but continues operation.
type AlertHandler interface {
	Name() string
	Send(ev Event, logger *EventLogger) error
}

// LogAlert records the event in the event log.  This is the default alert
// handler if no other alerts are configured.
type LogAlert struct{}

// Name returns the type name of the alert handler.
func (LogAlert) Name() string { return "log" }

// Send writes an alert to the event log.
func (LogAlert) Send(ev Event, logger *EventLogger) error {
	logger.Log("alert: %s on %s (id=%s)", ev.Kind, ev.Board, ev.ID)
	return nil
}

// EmailAlert sends an email via an SMTP server.  The subject defaults to
// "Motion detected" if empty.  Timeout bounds the connection and the whole
// exchange with the server.
type EmailAlert struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	To         string
	Subject    string
	Timeout    time.Duration
}

// Name returns the type name of the alert handler.
func (EmailAlert) Name() string { return "email" }

// Send composes a minimal plaintext message and dispatches it.  STARTTLS is
// used when the server offers it.
func (e EmailAlert) Send(ev Event, logger *EventLogger) error {
	subject := e.Subject
	if subject == "" {
		subject = "Motion detected"
	}
	body := fmt.Sprintf("Board %s reported %s at %s (event %s)",
		ev.Board, ev.Kind, ev.At.Format("2006-01-02 15:04:05 MST"), ev.ID)
	// RFC 5322 requires CRLF line endings.
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", e.To, subject, body)

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	addr := net.JoinHostPort(e.SMTPServer, strconv.Itoa(e.SMTPPort))
	conn, err := (&net.Dialer{Timeout: timeout}).Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return err
	}
	c, err := smtp.NewClient(conn, e.SMTPServer)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting from %s: %w", addr, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.SMTPServer}); err != nil {
			return err
		}
	}
	if e.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", e.Username, e.Password, e.SMTPServer)); err != nil {
			return err
		}
	}
	if err := c.Mail(e.From); err != nil {
		return err
	}
	if err := c.Rcpt(e.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// publisher is the subset of the MQTT client used by MQTTAlert.
type publisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTAlert publishes the event as JSON to <prefix>/<board>/events.
type MQTTAlert struct {
	Publisher   publisher
	TopicPrefix string
}

// Name returns the type name of the alert handler.
func (MQTTAlert) Name() string { return "mqtt" }

// Send marshals ev and publishes it.
func (m MQTTAlert) Send(ev Event, logger *EventLogger) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return m.Publisher.Publish(eventTopic(m.TopicPrefix, ev.Board), payload)
}

func eventTopic(prefix, board string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return board + "/events"
	}
	return prefix + "/" + board + "/events"
}

// messageBoard is the part of Board used by DisplayAlert.
type messageBoard interface {
	WriteMessage(msg string, line int) error
	ChangeBackground(color string) error
}

// DisplayAlert shows the detection on the board's own LCD.
type DisplayAlert struct {
	Board messageBoard
}

// Name returns the type name of the alert handler.
func (DisplayAlert) Name() string { return "display" }

// Send writes a notice on the second line and turns the backlight red.
func (d DisplayAlert) Send(ev Event, logger *EventLogger) error {
	if err := d.Board.WriteMessage("Motion detected", 1); err != nil {
		return err
	}
	return d.Board.ChangeBackground("red")
}

// initAlertHandlers constructs the handlers named in cfg.Alerts.  If none are
// configured, a single LogAlert is returned so that detections are always
// recorded.  pub may be nil when no mqtt alert is configured.
func initAlertHandlers(cfg Config, board messageBoard, pub publisher) []AlertHandler {
	var handlers []AlertHandler
	for _, ac := range cfg.Alerts {
		switch strings.ToLower(ac.Type) {
		case "log":
			handlers = append(handlers, LogAlert{})
		case "email":
			handlers = append(handlers, EmailAlert{
				SMTPServer: ac.SMTPServer,
				SMTPPort:   ac.SMTPPort,
				Username:   ac.Username,
				Password:   ac.Password,
				From:       ac.From,
				To:         ac.To,
				Subject:    ac.Subject,
				Timeout:    ac.Timeout,
			})
		case "mqtt":
			if pub == nil {
				slog.Warn("mqtt alert configured without a broker connection, skipping")
				continue
			}
			handlers = append(handlers, MQTTAlert{Publisher: pub, TopicPrefix: cfg.MQTT.TopicPrefix})
		case "display":
			handlers = append(handlers, DisplayAlert{Board: board})
		}
	}
	if len(handlers) == 0 {
		handlers = append(handlers, LogAlert{})
	}
	return handlers
}

// registerAlerts subscribes every handler to PresenceDetected.  Errors are
// logged but do not propagate.
func registerAlerts(d *Dispatcher, handlers []AlertHandler, logger *EventLogger) {
	for _, h := range handlers {
		h := h
		d.Register(PresenceDetected, func(ev Event) {
			if err := h.Send(ev, logger); err != nil {
				slog.Warn("alert failed", "handler", h.Name(), "event", ev.ID, "err", err)
				logger.Log("alert handler %s error: %v", h.Name(), err)
			}
		})
	}
}
