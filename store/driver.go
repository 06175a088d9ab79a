package store

import (
	"context"
	"database/sql"
)

// Driver is the set of methods a database backend must implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Document model related methods.
	UpsertDocument(ctx context.Context, create *Document) (*Document, error)
	ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error)
	DeleteDocuments(ctx context.Context, userEmail, repo string) (int64, error)
	SearchDocumentsByVector(ctx context.Context, opts *VectorSearchOptions) ([]*DocumentWithScore, error)

	// Ingestion bookkeeping.
	GetIngestState(ctx context.Context, userEmail, repo string) (*IngestState, error)
	UpsertIngestState(ctx context.Context, state *IngestState) error

	// Instruction model related methods.
	CreateInstruction(ctx context.Context, create *Instruction) (*Instruction, error)
	ListInstructions(ctx context.Context, find *FindInstruction) ([]*Instruction, error)
	SearchInstructionsByVector(ctx context.Context, opts *InstructionSearchOptions) ([]*InstructionWithScore, error)

	// Schedule model related methods.
	CreateSchedule(ctx context.Context, create *Schedule) (*Schedule, error)
	ListSchedules(ctx context.Context, find *FindSchedule) ([]*Schedule, error)
	UpdateSchedule(ctx context.Context, update *UpdateSchedule) (*Schedule, error)
	DeleteSchedule(ctx context.Context, delete *DeleteSchedule) error

	// VerifiedEmail model related methods.
	UpsertVerifiedEmail(ctx context.Context, upsert *VerifiedEmail) (*VerifiedEmail, error)
	GetVerifiedEmail(ctx context.Context, find *FindVerifiedEmail) (*VerifiedEmail, error)
	MarkEmailVerified(ctx context.Context, token string) (*VerifiedEmail, error)
}
