package types

// FileWarning describes a file that was skipped.
type FileWarning struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Diagnostics collects every non-fatal problem seen during a run.
type Diagnostics struct {
	FilesScanned      int           `json:"files_scanned"`
	SkippedFiles      []FileWarning `json:"skipped_files,omitempty"`
	SkippedLines      int           `json:"skipped_lines"`
	DuplicateLines    int           `json:"duplicate_lines"`
	UnpricedEvents    int           `json:"unpriced_events"`
	// MissingModel counts events without a model field. They are priced from
	// the reported cost when present, else unpriced.
	MissingModel      int           `json:"missing_model"`
	CostDiscrepancies int           `json:"cost_discrepancies"`
	CacheWarnings     []string      `json:"cache_warnings,omitempty"`
}

// Merge adds o into d.
func (d *Diagnostics) Merge(o Diagnostics) {
	d.FilesScanned += o.FilesScanned
	d.SkippedFiles = append(d.SkippedFiles, o.SkippedFiles...)
	d.SkippedLines += o.SkippedLines
	d.DuplicateLines += o.DuplicateLines
	d.UnpricedEvents += o.UnpricedEvents
	d.MissingModel += o.MissingModel
	d.CostDiscrepancies += o.CostDiscrepancies
	d.CacheWarnings = append(d.CacheWarnings, o.CacheWarnings...)
}

// Clean reports whether nothing was skipped or left unpriced.
func (d Diagnostics) Clean() bool {
	return len(d.SkippedFiles) == 0 && d.SkippedLines == 0 && d.UnpricedEvents == 0 && len(d.CacheWarnings) == 0
}
