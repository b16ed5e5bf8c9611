package database

import (
	"sort"

	"github.com/nao1215/panoskim/internal/skim"
)

// SubjectDelta is the change of one subject's counts between two runs.
type SubjectDelta struct {
	SubjectID string `json:"subject_id"`
	// Previous and Current are zero when the subject is absent from that run.
	Previous skim.SubjectCount `json:"previous"`
	Current  skim.SubjectCount `json:"current"`
}

// Delta returns the change of the subject's total.
func (d SubjectDelta) Delta() int {
	return d.Current.Total - d.Previous.Total
}

// Comparison is the difference between two stored runs.
type Comparison struct {
	Previous *Run `json:"previous"`
	Current  *Run `json:"current"`

	// Added are subjects present only in the current run.
	Added []string `json:"added"`
	// Removed are subjects present only in the previous run.
	Removed []string `json:"removed"`
	// Changed are subjects whose counts differ, sorted by subject id.
	Changed []SubjectDelta `json:"changed"`
}

// KeptDelta returns the change in kept classifications.
func (c *Comparison) KeptDelta() int {
	return c.Current.Kept - c.Previous.Kept
}

// UniqueUsersDelta returns the change in distinct identities of both classes.
func (c *Comparison) UniqueUsersDelta() int {
	return (c.Current.UniqueLoggedOn + c.Current.UniqueNonLoggedOn) -
		(c.Previous.UniqueLoggedOn + c.Previous.UniqueNonLoggedOn)
}

// HasChanges reports whether any subject count differs.
func (c *Comparison) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0 || len(c.Changed) > 0
}

// CompareRuns compares the subject counts of two runs. Both runs must have
// been loaded with GetRun so their subject counts are present.
func CompareRuns(previous, current *Run) *Comparison {
	before := make(map[string]skim.SubjectCount, len(previous.Subjects))
	for _, s := range previous.Subjects {
		before[s.SubjectID] = s
	}
	after := make(map[string]skim.SubjectCount, len(current.Subjects))
	for _, s := range current.Subjects {
		after[s.SubjectID] = s
	}

	cmp := &Comparison{
		Previous: previous,
		Current:  current,
		Added:    []string{},
		Removed:  []string{},
		Changed:  []SubjectDelta{},
	}

	for id, cur := range after {
		prev, ok := before[id]
		if !ok {
			cmp.Added = append(cmp.Added, id)
			cmp.Changed = append(cmp.Changed, SubjectDelta{SubjectID: id, Current: cur})
			continue
		}
		if prev != cur {
			cmp.Changed = append(cmp.Changed, SubjectDelta{SubjectID: id, Previous: prev, Current: cur})
		}
	}
	for id, prev := range before {
		if _, ok := after[id]; !ok {
			cmp.Removed = append(cmp.Removed, id)
			cmp.Changed = append(cmp.Changed, SubjectDelta{SubjectID: id, Previous: prev})
		}
	}

	sort.Strings(cmp.Added)
	sort.Strings(cmp.Removed)
	sort.Slice(cmp.Changed, func(i, j int) bool {
		return cmp.Changed[i].SubjectID < cmp.Changed[j].SubjectID
	})
	return cmp
}
