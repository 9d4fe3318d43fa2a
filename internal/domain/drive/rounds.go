package drive

import (
	"fmt"
	"strings"

	"placement/internal/common"
)

// RoundStatus only moves pending -> completed.
type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundCompleted RoundStatus = "completed"
)

type SelectionRound struct {
	Name             string        `json:"name"`
	Status           RoundStatus   `json:"status"`
	SelectedStudents []common.UUID `json:"selected_students"`
}

func NewRounds(names []string) []SelectionRound {
	rounds := make([]SelectionRound, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rounds = append(rounds, SelectionRound{Name: name, Status: RoundPending, SelectedStudents: []common.UUID{}})
	}
	return rounds
}

func (d *JobDrive) round(index int) (*SelectionRound, error) {
	if index < 0 || index >= len(d.SelectionRounds) {
		return nil, common.NewError(common.CodeInvalidRound, fmt.Sprintf("round %d does not exist", index), nil).
			WithDetail("rounds", len(d.SelectionRounds))
	}
	return &d.SelectionRounds[index], nil
}

// AddRound appends a pending round at the end of the sequence.
func (d *JobDrive) AddRound(name string) (int, error) {
	if err := d.ensureOpen(); err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, common.NewValidationError("invalid round", map[string]string{"name": "name is required"})
	}
	d.SelectionRounds = append(d.SelectionRounds, SelectionRound{Name: name, Status: RoundPending, SelectedStudents: []common.UUID{}})
	return len(d.SelectionRounds) - 1, nil
}

func (d *JobDrive) CompleteRound(index int) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	round, err := d.round(index)
	if err != nil {
		return err
	}
	round.Status = RoundCompleted
	return nil
}

// CandidatePool returns every application for round 0 and, for later rounds,
// the applications selected in the previous round.
func (d *JobDrive) CandidatePool(index int) ([]Application, error) {
	if _, err := d.round(index); err != nil {
		return nil, err
	}
	if index == 0 {
		return append([]Application(nil), d.Applications...), nil
	}
	previous := d.SelectionRounds[index-1].SelectedStudents
	if len(previous) == 0 {
		return nil, common.NewError(common.CodePreviousRoundEmpty, "no candidates: previous round has no selected students", nil).
			WithDetail("round", index-1)
	}
	byStudent := make(map[common.UUID]Application, len(d.Applications))
	for _, app := range d.Applications {
		byStudent[app.StudentID] = app
	}
	pool := make([]Application, 0, len(previous))
	for _, id := range previous {
		if app, ok := byStudent[id]; ok {
			pool = append(pool, app)
		}
	}
	return pool, nil
}

// SelectStudents replaces the round's selection. Every id must be drawn from
// the round's candidate pool. Later rounds lose any student the new selection
// dropped, so no pool downstream can widen.
func (d *JobDrive) SelectStudents(index int, ids []common.UUID) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	round, err := d.round(index)
	if err != nil {
		return err
	}
	var pool []Application
	if len(ids) > 0 {
		pool, err = d.CandidatePool(index)
		if err != nil {
			return err
		}
	}
	inPool := make(map[common.UUID]struct{}, len(pool))
	for _, app := range pool {
		inPool[app.StudentID] = struct{}{}
	}
	selected := make([]common.UUID, 0, len(ids))
	seen := make(map[common.UUID]struct{}, len(ids))
	var outside []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := inPool[id]; !ok {
			outside = append(outside, id.String())
			continue
		}
		selected = append(selected, id)
	}
	if len(outside) > 0 {
		return common.NewError(common.CodeNotASubsetOfPool, "selected students are not in the round's candidate pool", nil).
			WithDetail("student_ids", outside)
	}
	round.SelectedStudents = selected
	d.pruneAfter(index)
	return nil
}

func (d *JobDrive) pruneAfter(index int) {
	allowed := idSet(d.SelectionRounds[index].SelectedStudents)
	for j := index + 1; j < len(d.SelectionRounds); j++ {
		kept := make([]common.UUID, 0, len(d.SelectionRounds[j].SelectedStudents))
		for _, id := range d.SelectionRounds[j].SelectedStudents {
			if _, ok := allowed[id]; ok {
				kept = append(kept, id)
			}
		}
		d.SelectionRounds[j].SelectedStudents = kept
		allowed = idSet(kept)
	}
}

// checkChain reports the first round whose selection is not drawn from its pool.
func (d *JobDrive) checkChain() error {
	pool := make(map[common.UUID]struct{}, len(d.Applications))
	for _, app := range d.Applications {
		pool[app.StudentID] = struct{}{}
	}
	for j, round := range d.SelectionRounds {
		var outside []string
		next := make(map[common.UUID]struct{}, len(round.SelectedStudents))
		for _, id := range round.SelectedStudents {
			if _, ok := pool[id]; !ok {
				outside = append(outside, id.String())
				continue
			}
			next[id] = struct{}{}
		}
		if len(outside) > 0 {
			return common.NewError(common.CodeNotASubsetOfPool, "round selection is not drawn from its candidate pool", nil).
				WithDetail("round", j).
				WithDetail("student_ids", outside)
		}
		pool = next
	}
	return nil
}

func idSet(ids []common.UUID) map[common.UUID]struct{} {
	set := make(map[common.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
