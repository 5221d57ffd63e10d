package repository

import (
	"context"
	"time"

	"complainthub/internal/domain/entity"
)

// ConversationRepository persists conversations keyed by their (student,
// admin) pair and optional complaint scope. An empty complaintID selects the
// single unscoped conversation for the pair.
//
// Implementations must make FindOrCreate and AppendMessage atomic with
// respect to concurrent callers: two racing first messages for a brand-new
// pair converge to one document, and concurrent appends never overwrite each
// other.
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, studentID, adminID, complaintID string) (*entity.Conversation, error)

	// Get returns the conversation or a NOT_FOUND error.
	Get(ctx context.Context, studentID, adminID, complaintID string) (*entity.Conversation, error)

	// AppendMessage appends atomically, creating the conversation if it does
	// not exist yet, and returns the updated document.
	AppendMessage(ctx context.Context, studentID, adminID, complaintID string, message entity.Message) (*entity.Conversation, error)

	// MarkRead advances the given side's read marker to at. The marker never
	// moves backward. A missing conversation is a successful no-op.
	MarkRead(ctx context.Context, studentID, adminID, complaintID string, role entity.Role, at time.Time) error

	// DeleteByComplaintID removes every conversation scoped to the complaint.
	// Called by the complaint-resolution flow outside this package.
	DeleteByComplaintID(ctx context.Context, complaintID string) error
}
