package domain

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a managed prompt template. The ingestion path consumes prompts
// only as lookup targets for the test-count statistic; authoring and
// rendering live outside this subsystem.
type Prompt struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"projectId"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PromptVersion is one immutable version of a prompt. TestCount is a
// denormalized statistic bumped when a trace starts against this version.
type PromptVersion struct {
	ID            uuid.UUID `json:"id"`
	PromptID      uuid.UUID `json:"promptId"`
	VersionNumber int       `json:"versionNumber"`
	TestCount     int64     `json:"testCount"`
	CreatedAt     time.Time `json:"createdAt"`
}
