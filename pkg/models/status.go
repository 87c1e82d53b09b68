package models

// DocumentClass is the closed set of export document kinds
type DocumentClass string

const (
	ClassUnknown    DocumentClass = ""            // Classifier could not decide
	ClassPhotoIndex DocumentClass = "photo_index" // Shared photo list without per-message context
	ClassDialog     DocumentClass = "dialog"      // Chat transcript with author/date per message
)

// String implements fmt.Stringer for logging
func (c DocumentClass) String() string {
	if c == "" {
		return "unknown"
	}
	return string(c)
}

// IsValid returns true if the class has an extraction rule
func (c DocumentClass) IsValid() bool {
	switch c {
	case ClassPhotoIndex, ClassDialog:
		return true
	}
	return false
}

// ParseDocumentClass maps user input ("dialog", "photo_index") to a class.
// Anything else yields ClassUnknown.
func ParseDocumentClass(s string) DocumentClass {
	switch DocumentClass(s) {
	case ClassPhotoIndex:
		return ClassPhotoIndex
	case ClassDialog:
		return ClassDialog
	}
	return ClassUnknown
}

// OutcomeKind is the terminal state of one image in a batch
type OutcomeKind string

const (
	OutcomeSkipped    OutcomeKind = "skipped"    // Destination already on disk
	OutcomeDownloaded OutcomeKind = "downloaded" // Fetched and written
	OutcomeFailed     OutcomeKind = "failed"     // Transport, status, or disk failure
)

// String implements fmt.Stringer for logging
func (k OutcomeKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}
