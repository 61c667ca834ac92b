// Package extractor pulls meeting proposals out of call transcripts with a
// single forced-JSON completion.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/clock"
	"github.com/solacrm/backend/internal/llm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
)

// CallContext describes the call the transcript came from. CallDate anchors
// relative-date resolution; "tomorrow" means the day after the call, not the
// day after extraction.
type CallContext struct {
	CallDate     time.Time
	Participants []string
}

// Extractor runs the one-shot extraction.
type Extractor struct {
	loc *time.Location
	log *logger.Logger
}

func New(loc *time.Location, log *logger.Logger) *Extractor {
	if loc == nil {
		loc = clock.DefaultLocation
	}
	return &Extractor{loc: loc, log: log.WithComponent("extractor")}
}

const extractInstruction = `You extract meeting agreements from sales-call transcripts. Reply with a single JSON object:
{"agreed": bool, "title": string, "date": string, "time": string, "duration_minutes": int, "attendees": [string], "notes": string, "confidence": number}

Rules:
- "agreed" is true ONLY when a participant explicitly and affirmatively commits to a meeting ("yes, let's do Tuesday", "book it"). Tentative, hypothetical or one-sided suggestions are agreed=false.
- "date" and "time" repeat the words used in the call (e.g. "next tuesday", "3pm"). Leave them empty when no concrete slot was mentioned.
- "confidence" is your own 0..1 estimate.
- Do not invent attendees or details that are not in the transcript.`

// Extract runs one low-temperature forced-JSON completion and resolves any
// relative date against the call date.
func (e *Extractor) Extract(ctx context.Context, client llm.Client, modelName, transcript string, callCtx CallContext) (model.MeetingProposal, error) {
	var proposal model.MeetingProposal

	if strings.TrimSpace(transcript) == "" {
		return proposal, fmt.Errorf("transcript is empty")
	}
	callDate := callCtx.CallDate
	if callDate.IsZero() {
		return proposal, fmt.Errorf("call date is required")
	}

	user := fmt.Sprintf("Call date: %s\nParticipants: %s\n\nTranscript:\n%s",
		callDate.In(e.loc).Format("Monday, 2006-01-02"),
		strings.Join(callCtx.Participants, ", "),
		transcript)

	resp, err := client.Complete(ctx, &llm.CompletionRequest{
		Model: modelName,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: extractInstruction},
			{Role: llm.RoleUser, Content: user},
		},
		MaxTokens:   600,
		Temperature: 0.1,
		ForceJSON:   true,
	})
	if err != nil {
		return proposal, fmt.Errorf("extraction completion: %w", err)
	}

	raw := strings.TrimSpace(resp.Content)
	if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
		return proposal, fmt.Errorf("decode extraction output: %w", err)
	}

	e.resolveDates(&proposal, callDate)

	if proposal.Agreed && (proposal.Date == "" || proposal.Time == "") {
		// An agreement without a concrete slot is not actionable; keep the
		// extraction but demote it.
		e.log.Debug("demoting agreement without a concrete slot",
			zap.String("date", proposal.Date), zap.String("time", proposal.Time))
		proposal.Agreed = false
	}
	return proposal, nil
}

// resolveDates normalizes the model's date/time words to YYYY-MM-DD and HH:MM
// in the business timezone, anchored at the call date.
func (e *Extractor) resolveDates(p *model.MeetingProposal, callDate time.Time) {
	clk := clock.NewFixed(callDate.In(e.loc), e.loc)

	if p.Date != "" {
		if day, err := clk.ResolveDate(p.Date); err == nil {
			p.Date = day.Format("2006-01-02")
		} else {
			p.Date = ""
		}
	}
	if p.Time != "" {
		anchor := clk.Today()
		if t, err := clk.ResolveTime(anchor, p.Time); err == nil {
			p.Time = t.Format("15:04")
		} else {
			p.Time = ""
		}
	}
	if p.DurationMinutes <= 0 {
		p.DurationMinutes = 30
	}
}

// ToCalendarEvent converts an agreed proposal into an event row in the
// business timezone.
func (e *Extractor) ToCalendarEvent(p model.MeetingProposal, tenantID, userID string) (*model.CalendarEvent, error) {
	if !p.Agreed {
		return nil, fmt.Errorf("proposal was not agreed")
	}
	if p.Date == "" || p.Time == "" {
		return nil, fmt.Errorf("proposal has no concrete slot")
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", p.Date+" "+p.Time, e.loc)
	if err != nil {
		return nil, fmt.Errorf("parse proposal slot: %w", err)
	}

	title := p.Title
	if title == "" {
		title = "Follow-up meeting"
	}

	return &model.CalendarEvent{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		UserID:      userID,
		Title:       title,
		Description: p.Notes,
		Attendees:   strings.Join(p.Attendees, ","),
		StartTime:   start,
		EndTime:     start.Add(time.Duration(p.DurationMinutes) * time.Minute),
	}, nil
}
