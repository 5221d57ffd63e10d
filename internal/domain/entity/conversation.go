package entity

import (
	"fmt"
	"time"
)

// Role tags which side of a conversation a participant (or a message's
// sender) belongs to. Only the two values below are valid; ParseRole is the
// single place free-form input becomes a Role.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Other returns the opposite side of a two-role conversation.
func (r Role) Other() Role {
	if r == RoleStudent {
		return RoleAdmin
	}
	return RoleStudent
}

// Message is embedded in a Conversation, never stored standalone. Exactly one
// of StudentID/AdminID is set, matching Sender.
type Message struct {
	ID        string    `json:"id" bson:"id"`
	Sender    Role      `json:"sender" bson:"sender"`
	StudentID string    `json:"student_id,omitempty" bson:"studentId,omitempty"`
	AdminID   string    `json:"admin_id,omitempty" bson:"adminId,omitempty"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
}

// NewMessage builds a message for the given sender, assigning the identity
// field that matches the role. The caller supplies ID and CreatedAt.
func NewMessage(sender Role, senderID, text string) (Message, error) {
	if !sender.Valid() {
		return Message{}, fmt.Errorf("invalid sender role %q", sender)
	}
	msg := Message{
		Sender: sender,
		Text:   text,
	}
	if sender == RoleStudent {
		msg.StudentID = senderID
	} else {
		msg.AdminID = senderID
	}
	return msg, nil
}

// Conversation is the persistent record of all messages exchanged between one
// student and one admin, optionally scoped to a complaint. The messages slice
// is append-only and chronological.
type Conversation struct {
	ID                string    `json:"id" bson:"_id"`
	Student           string    `json:"student" bson:"student"`
	Admin             string    `json:"admin" bson:"admin"`
	ComplaintID       string    `json:"complaint_id,omitempty" bson:"complaintId,omitempty"`
	Messages          []Message `json:"messages" bson:"messages"`
	LastReadByStudent time.Time `json:"last_read_by_student" bson:"lastReadByStudent"`
	LastReadByAdmin   time.Time `json:"last_read_by_admin" bson:"lastReadByAdmin"`
	CreatedAt         time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updatedAt"`
}

// LastReadBy returns the read marker for the given side.
func (c *Conversation) LastReadBy(role Role) time.Time {
	if role == RoleStudent {
		return c.LastReadByStudent
	}
	return c.LastReadByAdmin
}

// UnreadCount counts messages created strictly after the given side's read
// marker and sent by the other side. A participant's own messages are never
// unread to themselves.
func (c *Conversation) UnreadCount(role Role) int {
	marker := c.LastReadBy(role)
	count := 0
	for _, msg := range c.Messages {
		if msg.Sender != role && msg.CreatedAt.After(marker) {
			count++
		}
	}
	return count
}
