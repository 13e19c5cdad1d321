package models

// LeadMergePatch is the reconciled field set the merge engine writes back to
// the primary lead. Nil pointers clear the column.
type LeadMergePatch struct {
	Email        *string
	Phone        *string
	Website      *string
	Address      *string
	City         *string
	State        *string
	ZipCode      *string
	EnrichedData EnrichedData
	MergeHistory MergeHistory
}

// MergeLeadRequest is the request for an explicit merge of caller-supplied
// fields into a stored primary lead
type MergeLeadRequest struct {
	PrimaryID string       `json:"primary_id" validate:"required"`
	Secondary LeadSnapshot `json:"secondary" validate:"required"`
}

// BatchResult summarizes one batch deduplication run
type BatchResult struct {
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
	Merged     int `json:"merged"`
	Failed     int `json:"failed"`
}

// CleanupResult summarizes a delete-duplicates sweep
type CleanupResult struct {
	Found   int `json:"found"`
	Deleted int `json:"deleted"`
}
