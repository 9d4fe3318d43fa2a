package drive

import (
	"time"

	"placement/internal/common"
)

// Finalize commits the last round's selection as the drive's placed students.
// The transition is one-way; a finalized drive rejects every further mutation.
func (d *JobDrive) Finalize(now time.Time) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	if len(d.SelectionRounds) == 0 {
		return common.NewError(common.CodeNoRounds, "drive has no selection rounds", nil)
	}
	last := d.SelectionRounds[len(d.SelectionRounds)-1]
	if len(last.SelectedStudents) == 0 {
		return common.NewError(common.CodeNoFinalSelection, "final round has no selected students", nil)
	}

	if err := d.checkChain(); err != nil {
		return err
	}

	index := make(map[common.UUID]int, len(d.Applications))
	for i, app := range d.Applications {
		index[app.StudentID] = i
	}
	placed := make([]PlacedStudent, 0, len(last.SelectedStudents))
	for _, id := range last.SelectedStudents {
		placed = append(placed, PlacedStudent{StudentID: id, StudentSnapshot: d.Applications[index[id]].Student})
	}

	for _, p := range placed {
		d.Applications[index[p.StudentID]].Status = ApplicationPlaced
	}
	d.PlacedStudents = placed
	d.Placement = PlacementFinalized
	finalizedAt := now
	d.FinalizedAt = &finalizedAt
	return nil
}
