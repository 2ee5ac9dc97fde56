package domain

// Stage is the client workflow's position in the upload→extract→review→save lifecycle.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageExtracting Stage = "extracting"
	StageReviewable Stage = "reviewable"
	StageSaving     Stage = "saving"
	StageSaved      Stage = "saved"
	StageFailed     Stage = "failed"
)

// stageRank orders the non-failed stages; failed has no rank.
var stageRank = map[Stage]int{
	StageIdle:       0,
	StageUploading:  1,
	StageProcessing: 2,
	StageExtracting: 3,
	StageReviewable: 4,
	StageSaving:     5,
	StageSaved:      6,
}

// IsTerminal reports whether no further transition is possible for the current document.
func (s Stage) IsTerminal() bool {
	return s == StageSaved || s == StageFailed
}

// IsPending reports whether the backend pipeline is still working on the document.
func (s Stage) IsPending() bool {
	return s == StageUploading || s == StageProcessing || s == StageExtracting
}

// Before reports whether s comes strictly earlier than other in the lifecycle.
func (s Stage) Before(other Stage) bool {
	a, okA := stageRank[s]
	b, okB := stageRank[other]
	return okA && okB && a < b
}

// StageForLabel maps a backend progress label onto a pending stage.
// Labels that carry no structural meaning (e.g. "connected") return false.
func StageForLabel(label string) (Stage, bool) {
	switch label {
	case string(DocumentStatusProcessing):
		return StageProcessing, true
	case string(DocumentStatusCallingLLM), "extracting":
		return StageExtracting, true
	default:
		return "", false
	}
}

// DocumentStatus is the backend's lifecycle status for an uploaded document.
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCallingLLM DocumentStatus = "calling_llm"
	DocumentStatusExtracted  DocumentStatus = "extracted"
	DocumentStatusSaved      DocumentStatus = "saved"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// StatusConnected is the first status a push stream emits to a new subscriber.
const StatusConnected = "connected"

// Push-stream event names.
const (
	EventStatus    = "status"
	EventExtracted = "extracted"
	EventError     = "error"
)

// AllowedImageTypes lists the image MIME types accepted for extraction besides PDF.
var AllowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/tiff": true,
	"image/bmp":  true,
}

// ContentTypePDF is the MIME type of PDF uploads.
const ContentTypePDF = "application/pdf"
