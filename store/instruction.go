package store

import "context"

// Instruction is a persistent user preference ("always highlight security
// issues") bound to one repository and retrieved semantically when
// assembling that repository's report prompts.
type Instruction struct {
	ID        int32
	UserEmail string
	Repo      string
	Content   string
	CreatedTs int64

	Embedding []float32
}

// FindInstruction filters instruction listings.
type FindInstruction struct {
	UserEmail *string
	Repo      *string
	Limit     *int
}

// InstructionWithScore pairs an instruction with its similarity score.
type InstructionWithScore struct {
	Instruction *Instruction
	Score       float32
}

// InstructionSearchOptions filters semantic instruction retrieval.
type InstructionSearchOptions struct {
	UserEmail string
	Repo      string
	Embedding []float32
	Limit     int
}

func (s *Store) CreateInstruction(ctx context.Context, create *Instruction) (*Instruction, error) {
	return s.driver.CreateInstruction(ctx, create)
}

func (s *Store) ListInstructions(ctx context.Context, find *FindInstruction) ([]*Instruction, error) {
	return s.driver.ListInstructions(ctx, find)
}

func (s *Store) SearchInstructionsByVector(ctx context.Context, opts *InstructionSearchOptions) ([]*InstructionWithScore, error) {
	return s.driver.SearchInstructionsByVector(ctx, opts)
}
