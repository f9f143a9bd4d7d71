package reportform

import (
	"github.com/google/uuid"

	"safetyportal/internal/domain/report"
)

const (
	ObservationKeyPrefix = "observations/"
	ActionPlanKeyPrefix  = "action-plans/"
)

// NewObjectKey returns "<prefix><uuid><ext>", unique per upload.
func NewObjectKey(prefix string, upload *Upload) string {
	return prefix + uuid.NewString() + report.ImageExtension(upload.ContentType, upload.Name)
}
