package tools

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// SentReply records one outbound reply captured by RecordingMailer.
type SentReply struct {
	To      string
	Subject string
	Body    string
}

// RecordingMailer logs and records replies instead of delivering them.
// It stands in for a real mail API in the demo and in tests.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []SentReply
}

// NewRecordingMailer creates an empty recorder.
func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

// SendReply records the reply.
func (m *RecordingMailer) SendReply(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentReply{To: to, Subject: subject, Body: body})
	log.Printf("[MAIL] reply sent to=%s subject=%q", to, subject)
	return nil
}

// Sent returns a copy of all recorded replies.
func (m *RecordingMailer) Sent() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentReply, len(m.sent))
	copy(out, m.sent)
	return out
}

// StubCalendar answers with a fixed set of free slots and books the
// first one. It stands in for a real calendar API.
type StubCalendar struct {
	// FreeSlots are reported for every day. Defaults applied when empty.
	FreeSlots []string
}

func (c *StubCalendar) slots() []string {
	if len(c.FreeSlots) > 0 {
		return c.FreeSlots
	}
	return []string{"9:00 AM", "2:00 PM", "4:00 PM"}
}

// Availability returns the free slots for the day.
func (c *StubCalendar) Availability(ctx context.Context, day string) ([]string, error) {
	return c.slots(), nil
}

// Schedule books the first free slot.
func (c *StubCalendar) Schedule(ctx context.Context, attendees []string, subject string, durationMinutes int, day string) (string, error) {
	slots := c.slots()
	if len(slots) == 0 {
		return "", fmt.Errorf("no free slots on %s", day)
	}
	log.Printf("[CALENDAR] booked %q on %s at %s (%d min, %d attendees)",
		subject, day, slots[0], durationMinutes, len(attendees))
	return slots[0], nil
}
