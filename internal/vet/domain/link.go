package domain

// LinkGroup is the list of URLs found on one source page.
type LinkGroup struct {
	Name  string
	Links []string
}

// Record is one row of the verdict report.
type Record struct {
	Group  string
	Valid  string // "Yes" or "No"
	Reason string
	Review string // manual review flag, a fixed default
	URL    string
}

// NewRecord builds the report row for a verdict.
func NewRecord(group, url string, v Verdict, review string) Record {
	return Record{
		Group:  group,
		Valid:  v.Valid(),
		Reason: v.Reason,
		Review: review,
		URL:    url,
	}
}

// Fields returns the row in report column order.
func (r Record) Fields() []string {
	return []string{r.Group, r.Valid, r.Reason, r.Review, r.URL}
}

// ReportHeaders is the header row of the verdict report.
func ReportHeaders() []string {
	return []string{"Page", "Valid", "Reason/Notes", "Review", "Url"}
}
