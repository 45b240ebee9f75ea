package monitor

// Entry identifies one section in a change report.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// ModifiedEntry is a section whose content digest changed between runs.
type ModifiedEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	OldHash string `json:"old_hash"`
	NewHash string `json:"new_hash"`
	// Diff is a unified diff of the retained renditions, present only when
	// content retention was enabled for both the previous and current run.
	Diff string `json:"diff,omitempty"`
}

// Report is the four-way classification of one target's sections between
// the previous snapshot and the current run. The categories are disjoint;
// every section id seen in either run appears in exactly one of them,
// except ids whose fetch failed this run (excluded entirely).
type Report struct {
	Target    string          `json:"target"`
	Timestamp string          `json:"timestamp"`
	New       []Entry         `json:"new"`
	Modified  []ModifiedEntry `json:"modified"`
	Deleted   []Entry         `json:"deleted"`
	Unchanged []string        `json:"unchanged"`
	// Failed lists ids discovered this run whose fetch failed. They are in
	// no category and not in the new snapshot.
	Failed []string `json:"failed,omitempty"`
}

// Total returns the number of tracked changes (new + modified + deleted).
func (r *Report) Total() int {
	return len(r.New) + len(r.Modified) + len(r.Deleted)
}

// HasChanges reports whether anything changed this run.
func (r *Report) HasChanges() bool {
	return r.Total() > 0
}
