package domain

// ProbeResult is the transient result of probing a URL.
// MIMEType is empty when the probe failed; Body is empty on failure or when
// the content was not fetched.
type ProbeResult struct {
	MIMEType string
	Body     string
}

// HasMIMEType reports whether the probe produced a content type.
func (p ProbeResult) HasMIMEType() bool { return p.MIMEType != "" }
