// Package sink contains EventSink implementations fed by the fan-out
// worker. Sinks observe the relay; they never influence routing.
package sink

import (
	"context"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"relay-lab/domain/event"
	"relay-lab/repositories"
)

// DiskSink persists relay events as history records. Text-bearing records
// are enriched with the detected language; answer payloads additionally
// get a detected content type.
type DiskSink struct {
	repository repositories.IHistoryRepository
}

func NewDiskSink(repository repositories.IHistoryRepository) DiskSink {
	return DiskSink{repository: repository}
}

func (d DiskSink) Consume(_ context.Context, e event.Tagged) error {
	record, ok := toRecord(e)
	if !ok {
		return nil
	}
	return d.repository.Append(record)
}

func toRecord(e event.Tagged) (repositories.HistoryRecord, bool) {
	record := repositories.HistoryRecord{
		ID:        uuid.New(),
		SessionID: e.SessionID,
		Tag:       e.Event.EventTag(),
		At:        time.Now().UTC(),
	}

	switch evt := e.Event.(type) {
	case event.Created:
		record.Detail = evt.SessionID
	case event.MemberJoined:
		record.Actor = evt.Name
	case event.MemberLeft:
		record.Actor = evt.Name
	case event.PromptUpdate:
		record.Detail = evt.Text
		record.Lang = detectLang(evt.Text)
	case event.AnswerReceived:
		record.Actor = evt.Name
		record.Detail = evt.Payload
		record.Lang = detectLang(evt.Payload)
		record.ContentType = mimetype.Detect([]byte(evt.Payload)).String()
	case event.Feedback:
		record.Detail = evt.Text
		record.Lang = detectLang(evt.Text)
	case event.SessionClosed:
	default:
		// memberList refreshes, joined acks and error events are
		// transient; history keeps the state-changing events only.
		return repositories.HistoryRecord{}, false
	}
	return record, true
}

func detectLang(text string) string {
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}
