package models

// Completeness records whether a page finished loading before it was read.
type Completeness string

const (
	// ContentComplete means navigation finished within the page-load timeout.
	ContentComplete Completeness = "complete"

	// ContentPartial means the page-load timeout fired and the document was
	// read as it stood at that moment.
	ContentPartial Completeness = "partial"
)

// Response headers set by POST /convert.
const (
	HeaderContent   = "X-Pagemd-Content"
	HeaderSession   = "X-Pagemd-Session"
	HeaderRequestID = "X-Request-ID"
)
