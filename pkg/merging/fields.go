package merging

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// lastMergedKey is the enrichment key stamped on every merge
const lastMergedKey = "lastMerged"

// Reconcile computes the surviving field set for a merge of secondary into
// primary. The rules, per field:
//
//   - email/phone: keep the primary's value if it is valid, otherwise adopt
//     the secondary's if that one is valid, otherwise clear the field.
//   - website: keep the primary's when present, otherwise the secondary's.
//   - address/city/state/zip: one atomic group keyed on the primary's street
//     address. If the primary has one, its whole group survives untouched;
//     otherwise the secondary's whole group is adopted. Never mixed.
//   - enrichedData: shallow union, secondary wins on key collisions, plus a
//     lastMerged timestamp.
//   - mergeHistory: the primary's history plus one new entry holding the
//     secondary's pre-merge snapshot. Existing entries are never rewritten.
func Reconcile(primary *models.Lead, secondary models.LeadSnapshot, now time.Time) models.LeadMergePatch {
	patch := models.LeadMergePatch{
		Email:   pickValid(primary.Email, secondary.Email, normalizers.IsValidEmail),
		Phone:   pickValid(primary.Phone, secondary.Phone, normalizers.IsValidPhone),
		Website: pickPresent(primary.Website, secondary.Website),
	}

	if present(primary.Address) {
		patch.Address = primary.Address
		patch.City = primary.City
		patch.State = primary.State
		patch.ZipCode = primary.ZipCode
	} else {
		patch.Address = secondary.Address
		patch.City = secondary.City
		patch.State = secondary.State
		patch.ZipCode = secondary.ZipCode
	}

	patch.EnrichedData = mergeEnrichedData(primary.EnrichedData, secondary.EnrichedData, now)
	patch.MergeHistory = appendHistory(primary.MergeHistory, secondary, now)

	return patch
}

// pickValid keeps the primary value when it passes the validity check,
// otherwise the secondary when that one passes, otherwise nil.
func pickValid(primary, secondary *string, valid func(string) bool) *string {
	if primary != nil && valid(*primary) {
		return primary
	}
	if secondary != nil && valid(*secondary) {
		return secondary
	}
	return nil
}

// pickPresent keeps the primary value when present, otherwise the secondary
func pickPresent(primary, secondary *string) *string {
	if present(primary) {
		return primary
	}
	return secondary
}

func present(s *string) bool {
	return s != nil && *s != ""
}

// mergeEnrichedData is a shallow union: every top-level key of both maps,
// secondary winning collisions outright (no deep merge), stamped with the
// merge time.
func mergeEnrichedData(primary models.EnrichedData, secondary map[string]any, now time.Time) models.EnrichedData {
	merged := make(models.EnrichedData, len(primary)+len(secondary)+1)
	for k, v := range primary {
		merged[k] = v
	}
	for k, v := range secondary {
		merged[k] = v
	}
	merged[lastMergedKey] = now.Format(time.RFC3339)
	return merged
}

// appendHistory returns the primary's history with one entry appended for
// this merge. The slice is copied so prior history is never aliased.
func appendHistory(history models.MergeHistory, secondary models.LeadSnapshot, now time.Time) models.MergeHistory {
	out := make(models.MergeHistory, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, models.MergeEvent{
		MergedWith: secondary,
		MergedAt:   now,
		Source:     secondary.Source,
	})
	return out
}
