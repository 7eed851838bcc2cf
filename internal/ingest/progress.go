package ingest

// Phase describes the current import phase.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDiscovering Phase = "discovering"
	PhaseImporting   Phase = "importing"
	PhaseDone        Phase = "done"
)

// Progress reports import progress to listeners.
type Progress struct {
	Phase       Phase  `json:"phase"`
	CurrentFile string `json:"current_file,omitempty"`
	FilesTotal  int    `json:"files_total"`
	FilesDone   int    `json:"files_done"`
	Messages    int    `json:"messages"`
}

// Percent returns the import progress as a percentage (0–100).
func (p Progress) Percent() float64 {
	if p.FilesTotal == 0 {
		return 0
	}
	return float64(p.FilesDone) / float64(p.FilesTotal) * 100
}

// ProgressFunc is called with progress updates during an import.
type ProgressFunc func(Progress)

// Stats summarizes one import run. Failed counts files that could
// not be read or held no usable record; BadLines counts individual
// lines dropped from otherwise good files.
type Stats struct {
	BatchID  string   `json:"batch_id"`
	Files    int      `json:"files"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Messages int      `json:"messages"`
	BadLines int      `json:"bad_lines"`
	Warnings []string `json:"warnings,omitempty"`
}
