package scan

// Status is the lifecycle state of a scan record. It only ever moves
// pending -> done.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// ScanRecord is one accepted upload attempt and its analysis outcome.
// Credibility and Explanation are set together, exactly when Status is done.
type ScanRecord struct {
	ID            string
	OwnerID       string
	Filename      string
	ExtractedText string
	Status        Status
	Credibility   *int
	Explanation   *string
	CreatedAt     string
}

func (r ScanRecord) Done() bool {
	return r.Status == StatusDone
}

// MatchesKey reports whether key correlates with this record. The submitter
// hands the viewer either the store-assigned id or the generated filename,
// whichever it learned first.
func (r ScanRecord) MatchesKey(key string) bool {
	if key == "" {
		return false
	}
	return r.ID == key || r.Filename == key
}
