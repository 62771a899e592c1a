package pipeline

import (
	"context"

	"github.com/banshee-data/posture.report/internal/session"
)

// FrameInserter stores records under a session ID. *store.Store satisfies it.
type FrameInserter interface {
	InsertFrame(ctx context.Context, sessionID string, rec session.Record) error
}

// StoreSink writes records into one stored session.
type StoreSink struct {
	ctx       context.Context
	store     FrameInserter
	sessionID string
}

// NewStoreSink returns a Sink inserting into sessionID. ctx bounds every
// insert.
func NewStoreSink(ctx context.Context, st FrameInserter, sessionID string) *StoreSink {
	return &StoreSink{ctx: ctx, store: st, sessionID: sessionID}
}

func (s *StoreSink) Write(rec session.Record) error {
	return s.store.InsertFrame(s.ctx, s.sessionID, rec)
}

var (
	_ Sink = (*StoreSink)(nil)
	_ Sink = (*session.Recorder)(nil)
)
