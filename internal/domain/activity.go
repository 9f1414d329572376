package domain

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// TargetType enumerates the entity kinds a log entry may point at.
type TargetType string

const (
	TargetTask    TargetType = "task"
	TargetLead    TargetType = "lead"
	TargetProject TargetType = "project"
	TargetClient  TargetType = "client"
	TargetSystem  TargetType = "system"
)

var validTargetTypes = []TargetType{TargetTask, TargetLead, TargetProject, TargetClient, TargetSystem}

// LogEntry is one immutable activity-log record. Metadata is free-form JSON
// attached at write time; it is never access-checked, so readers must decide
// for themselves whether it is safe to surface.
type LogEntry struct {
	ID         int64
	ActorName  string
	Verb       string
	Summary    string
	TargetType TargetType
	ProjectID  string
	ClientID   string
	Metadata   json.RawMessage
	OccurredAt time.Time
}

// LogEntryInput holds input values for appending one activity-log record.
type LogEntryInput struct {
	ActorName  string
	Verb       string
	Summary    string
	TargetType TargetType
	ProjectID  string
	ClientID   string
	Metadata   json.RawMessage
}

func NewLogEntry(in LogEntryInput, now time.Time) (LogEntry, error) {
	in.ActorName = strings.TrimSpace(in.ActorName)
	in.Verb = strings.TrimSpace(in.Verb)
	in.Summary = strings.TrimSpace(in.Summary)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.ClientID = strings.TrimSpace(in.ClientID)

	if in.ActorName == "" {
		return LogEntry{}, ErrInvalidName
	}
	if in.Verb == "" {
		return LogEntry{}, ErrInvalidVerb
	}
	if in.TargetType == "" {
		in.TargetType = TargetSystem
	}
	if !slices.Contains(validTargetTypes, in.TargetType) {
		return LogEntry{}, ErrInvalidStatus
	}

	return LogEntry{
		ActorName:  in.ActorName,
		Verb:       in.Verb,
		Summary:    in.Summary,
		TargetType: in.TargetType,
		ProjectID:  in.ProjectID,
		ClientID:   in.ClientID,
		Metadata:   in.Metadata,
		OccurredAt: now.UTC(),
	}, nil
}
