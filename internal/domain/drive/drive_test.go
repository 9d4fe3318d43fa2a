package drive

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"placement/internal/common"
)

func newDriveWithApplicants(n int) *JobDrive {
	d := &JobDrive{
		ID:              "drive-1",
		IsActive:        true,
		Placement:       PlacementOpen,
		SelectionRounds: NewRounds([]string{"aptitude", "technical", "hr"}),
	}
	for i := 0; i < n; i++ {
		id := common.UUID(fmt.Sprintf("s-%02d", i))
		d.Applications = append(d.Applications, Application{
			StudentID: id,
			Status:    ApplicationApplied,
			Student:   StudentSnapshot{Name: "Student " + id.String(), RollNumber: "R" + id.String(), Email: id.String() + "@campus.test"},
		})
	}
	return d
}

func ids(values ...string) []common.UUID {
	out := make([]common.UUID, len(values))
	for i, v := range values {
		out[i] = common.UUID(v)
	}
	return out
}

func TestCandidatePool_NarrowsToPreviousSelection(t *testing.T) {
	d := newDriveWithApplicants(10)

	pool, err := d.CandidatePool(0)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(pool) != 10 {
		t.Fatalf("expected 10 candidates in round 0, got %d", len(pool))
	}

	if err := d.SelectStudents(0, ids("s-01", "s-03", "s-05", "s-07")); err != nil {
		t.Fatalf("expected selection to succeed, got %v", err)
	}
	pool, err = d.CandidatePool(1)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(pool) != 4 {
		t.Fatalf("expected 4 candidates in round 1, got %d", len(pool))
	}
	for i, want := range []string{"s-01", "s-03", "s-05", "s-07"} {
		if pool[i].StudentID.String() != want {
			t.Fatalf("expected candidate %d to be %s, got %s", i, want, pool[i].StudentID)
		}
	}
}

func TestCandidatePool_PreviousRoundEmpty(t *testing.T) {
	d := newDriveWithApplicants(3)
	if _, err := d.CandidatePool(1); !common.Is(err, common.CodePreviousRoundEmpty) {
		t.Fatalf("expected previous round empty, got %v", err)
	}
}

func TestRoundOperations_InvalidRound(t *testing.T) {
	d := newDriveWithApplicants(1)
	for _, idx := range []int{-1, 3, 42} {
		if err := d.CompleteRound(idx); !common.Is(err, common.CodeInvalidRound) {
			t.Fatalf("complete %d: expected invalid round, got %v", idx, err)
		}
		if _, err := d.CandidatePool(idx); !common.Is(err, common.CodeInvalidRound) {
			t.Fatalf("pool %d: expected invalid round, got %v", idx, err)
		}
		if err := d.SelectStudents(idx, ids("s-00")); !common.Is(err, common.CodeInvalidRound) {
			t.Fatalf("select %d: expected invalid round, got %v", idx, err)
		}
	}
}

func TestCompleteRound_SetsCompleted(t *testing.T) {
	d := newDriveWithApplicants(1)
	if err := d.CompleteRound(0); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.SelectionRounds[0].Status != RoundCompleted {
		t.Fatalf("expected completed, got %s", d.SelectionRounds[0].Status)
	}
	if d.SelectionRounds[1].Status != RoundPending {
		t.Fatalf("expected next round pending, got %s", d.SelectionRounds[1].Status)
	}
}

func TestSelectStudents_RejectsOutsidePool(t *testing.T) {
	d := newDriveWithApplicants(5)
	if err := d.SelectStudents(0, ids("s-00", "s-01")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	err := d.SelectStudents(1, ids("s-00", "s-04"))
	if !common.Is(err, common.CodeNotASubsetOfPool) {
		t.Fatalf("expected not a subset of pool, got %v", err)
	}
	appErr, _ := common.As(err)
	offending, _ := appErr.Details["student_ids"].([]string)
	if len(offending) != 1 || offending[0] != "s-04" {
		t.Fatalf("expected s-04 reported, got %v", appErr.Details["student_ids"])
	}
	if len(d.SelectionRounds[1].SelectedStudents) != 0 {
		t.Fatalf("expected rejected selection to leave round untouched, got %v", d.SelectionRounds[1].SelectedStudents)
	}
}

func TestSelectStudents_ReplacesAndDedupes(t *testing.T) {
	d := newDriveWithApplicants(5)
	if err := d.SelectStudents(0, ids("s-00", "s-01", "s-02")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := d.SelectStudents(0, ids("s-03", "s-01", "s-03")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	got := d.SelectionRounds[0].SelectedStudents
	if len(got) != 2 || got[0] != "s-03" || got[1] != "s-01" {
		t.Fatalf("expected [s-03 s-01], got %v", got)
	}
}

func TestSelectStudents_NoWidening(t *testing.T) {
	d := newDriveWithApplicants(8)
	steps := [][]common.UUID{
		ids("s-00", "s-02", "s-04", "s-06"),
		ids("s-02", "s-06"),
		ids("s-06"),
	}
	for i, step := range steps {
		if err := d.SelectStudents(i, step); err != nil {
			t.Fatalf("round %d: expected nil error, got %v", i, err)
		}
	}
	for j := 1; j < len(d.SelectionRounds); j++ {
		pool, err := d.CandidatePool(j)
		if err != nil {
			t.Fatalf("round %d: expected pool, got %v", j, err)
		}
		inPool := map[common.UUID]bool{}
		for _, app := range pool {
			inPool[app.StudentID] = true
		}
		prev := map[common.UUID]bool{}
		for _, id := range d.SelectionRounds[j-1].SelectedStudents {
			prev[id] = true
		}
		for id := range inPool {
			if !prev[id] {
				t.Fatalf("round %d pool widened with %s", j, id)
			}
		}
		for _, id := range d.SelectionRounds[j].SelectedStudents {
			if !inPool[id] {
				t.Fatalf("round %d selection %s outside pool", j, id)
			}
		}
	}
}

func TestSelectStudents_ReselectingEarlierRoundPrunesLaterRounds(t *testing.T) {
	d := newDriveWithApplicants(3)
	for i, step := range [][]common.UUID{ids("s-00", "s-01"), ids("s-00", "s-01"), ids("s-00")} {
		if err := d.SelectStudents(i, step); err != nil {
			t.Fatalf("round %d: expected nil error, got %v", i, err)
		}
	}

	if err := d.SelectStudents(0, ids("s-01")); err != nil {
		t.Fatalf("expected reselection to succeed, got %v", err)
	}
	if got := d.SelectionRounds[1].SelectedStudents; len(got) != 1 || got[0] != "s-01" {
		t.Fatalf("expected round 1 pruned to [s-01], got %v", got)
	}
	if got := d.SelectionRounds[2].SelectedStudents; len(got) != 0 {
		t.Fatalf("expected round 2 emptied, got %v", got)
	}
	pool, err := d.CandidatePool(1)
	if err != nil {
		t.Fatalf("expected pool, got %v", err)
	}
	if len(pool) != 1 || pool[0].StudentID != "s-01" {
		t.Fatalf("expected round 1 pool [s-01], got %+v", pool)
	}

	if err := d.Finalize(time.Now()); !common.Is(err, common.CodeNoFinalSelection) {
		t.Fatalf("expected no final selection after pruning, got %v", err)
	}
	if d.Finalized() {
		t.Fatal("expected drive to stay open")
	}
}

func TestAddRound(t *testing.T) {
	d := newDriveWithApplicants(1)
	idx, err := d.AddRound("  group discussion ")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if idx != 3 || d.SelectionRounds[3].Name != "group discussion" || d.SelectionRounds[3].Status != RoundPending {
		t.Fatalf("unexpected round %d: %+v", idx, d.SelectionRounds[idx])
	}
	if _, err := d.AddRound(" "); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFinalize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no rounds", func(t *testing.T) {
		d := newDriveWithApplicants(2)
		d.SelectionRounds = nil
		if err := d.Finalize(now); !common.Is(err, common.CodeNoRounds) {
			t.Fatalf("expected no rounds, got %v", err)
		}
	})

	t.Run("empty final selection", func(t *testing.T) {
		d := newDriveWithApplicants(2)
		_ = d.SelectStudents(0, ids("s-00"))
		if err := d.Finalize(now); !common.Is(err, common.CodeNoFinalSelection) {
			t.Fatalf("expected no final selection, got %v", err)
		}
		if d.Finalized() {
			t.Fatal("expected drive to stay open")
		}
	})

	t.Run("rejects final selection outside the round chain", func(t *testing.T) {
		d := newDriveWithApplicants(3)
		d.SelectionRounds[0].SelectedStudents = ids("s-01")
		d.SelectionRounds[1].SelectedStudents = ids("s-01")
		d.SelectionRounds[2].SelectedStudents = ids("s-00")
		err := d.Finalize(now)
		if !common.Is(err, common.CodeNotASubsetOfPool) {
			t.Fatalf("expected not a subset of pool, got %v", err)
		}
		if d.Finalized() || len(d.PlacedStudents) != 0 {
			t.Fatalf("expected nothing placed, got %+v", d.PlacedStudents)
		}
	})

	t.Run("commits snapshots once", func(t *testing.T) {
		d := newDriveWithApplicants(4)
		_ = d.SelectStudents(0, ids("s-00", "s-01", "s-02"))
		_ = d.SelectStudents(1, ids("s-01", "s-02"))
		_ = d.SelectStudents(2, ids("s-02"))
		if err := d.Finalize(now); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if !d.Finalized() || d.FinalizedAt == nil || !d.FinalizedAt.Equal(now) {
			t.Fatalf("expected finalized at %v, got %v / %v", now, d.Placement, d.FinalizedAt)
		}
		if len(d.PlacedStudents) != 1 || d.PlacedStudents[0].StudentID != "s-02" {
			t.Fatalf("expected s-02 placed, got %+v", d.PlacedStudents)
		}
		if d.PlacedStudents[0].RollNumber != "Rs-02" || d.PlacedStudents[0].Email != "s-02@campus.test" {
			t.Fatalf("expected snapshot copied, got %+v", d.PlacedStudents[0])
		}
		app, _ := d.FindApplication("s-02")
		if app.Status != ApplicationPlaced {
			t.Fatalf("expected application marked placed, got %s", app.Status)
		}

		before := append([]PlacedStudent(nil), d.PlacedStudents...)
		if err := d.Finalize(now.Add(time.Hour)); !common.Is(err, common.CodeAlreadyFinalized) {
			t.Fatalf("expected already finalized, got %v", err)
		}
		if len(d.PlacedStudents) != len(before) || d.PlacedStudents[0] != before[0] {
			t.Fatalf("placed students changed after second finalize: %+v", d.PlacedStudents)
		}
		if !d.FinalizedAt.Equal(now) {
			t.Fatalf("expected finalized_at unchanged, got %v", d.FinalizedAt)
		}
	})
}

func TestFinalizedDriveRejectsMutations(t *testing.T) {
	d := newDriveWithApplicants(2)
	_ = d.SelectStudents(0, ids("s-00"))
	_ = d.SelectStudents(1, ids("s-00"))
	_ = d.SelectStudents(2, ids("s-00"))
	if err := d.Finalize(time.Now()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if err := d.CompleteRound(0); !common.Is(err, common.CodeAlreadyFinalized) {
		t.Fatalf("complete: expected already finalized, got %v", err)
	}
	if err := d.SelectStudents(0, ids("s-01")); !common.Is(err, common.CodeAlreadyFinalized) {
		t.Fatalf("select: expected already finalized, got %v", err)
	}
	if _, err := d.AddRound("extra"); !common.Is(err, common.CodeAlreadyFinalized) {
		t.Fatalf("add round: expected already finalized, got %v", err)
	}
	if err := d.AddApplication(Application{StudentID: "s-99"}); !common.Is(err, common.CodeAlreadyFinalized) {
		t.Fatalf("apply: expected already finalized, got %v", err)
	}
}

func TestAddApplication_RejectsDuplicate(t *testing.T) {
	d := newDriveWithApplicants(0)
	if err := d.AddApplication(Application{StudentID: "s-01"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.Applications[0].Status != ApplicationApplied {
		t.Fatalf("expected default status applied, got %s", d.Applications[0].Status)
	}
	_ = d.CompleteRound(0)
	_ = d.SelectStudents(0, ids("s-01"))
	if err := d.AddApplication(Application{StudentID: "s-01"}); !common.Is(err, common.CodeAlreadyApplied) {
		t.Fatalf("expected already applied, got %v", err)
	}
	if len(d.Applications) != 1 {
		t.Fatalf("expected one application, got %d", len(d.Applications))
	}
}

func TestEffectiveDeadline(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	date := time.Date(2026, 5, 10, 0, 0, 0, 0, loc)
	deadline := time.Date(2026, 5, 8, 0, 0, 0, 0, loc)

	cases := []struct {
		name  string
		drive JobDrive
		want  time.Time
	}{
		{"date only", JobDrive{Date: date}, time.Date(2026, 5, 10, 23, 59, 59, 0, loc)},
		{"deadline wins", JobDrive{Date: date, Deadline: &deadline}, time.Date(2026, 5, 8, 23, 59, 59, 0, loc)},
		{"time of day", JobDrive{Date: date, Deadline: &deadline, Time: "14:30"}, time.Date(2026, 5, 8, 14, 30, 0, 0, loc)},
		{"twelve hour clock", JobDrive{Date: date, Time: "9:15 am"}, time.Date(2026, 5, 10, 9, 15, 0, 0, loc)},
		{"garbage time", JobDrive{Date: date, Time: "soon"}, time.Date(2026, 5, 10, 23, 59, 59, 0, loc)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.drive.EffectiveDeadline(loc)
			if !got.Equal(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDeadlinePassed_DeadlineGovernsOverDate(t *testing.T) {
	now := time.Date(2026, 5, 9, 10, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	d := JobDrive{Date: now.Add(24 * time.Hour), Deadline: &yesterday}
	if !d.DeadlinePassed(now, time.UTC) {
		t.Fatal("expected deadline passed")
	}
	d.Deadline = nil
	if d.DeadlinePassed(now, time.UTC) {
		t.Fatal("expected date to keep the drive open")
	}
}

func TestNormalizeRuleAndJobType(t *testing.T) {
	rule := NormalizeRule(EligibilityRule{
		AllowedDepartments: []string{" CS", "cs", "ECE ", ""},
		AllowedBatches:     []string{"2026", " 2026 ", "2027"},
	})
	if strings.Join(rule.AllowedDepartments, ",") != "cs,ece" {
		t.Fatalf("unexpected departments %v", rule.AllowedDepartments)
	}
	if strings.Join(rule.AllowedBatches, ",") != "2026,2027" {
		t.Fatalf("unexpected batches %v", rule.AllowedBatches)
	}
	if got := NormalizeJobType("", " Internship "); got != "Internship" {
		t.Fatalf("expected legacy type alias, got %q", got)
	}
	if got := NormalizeJobType("Full Time", "Internship"); got != "Full Time" {
		t.Fatalf("expected job_type to win, got %q", got)
	}
}

func TestMarshalJSON_ExposesPlacementFinalized(t *testing.T) {
	d := JobDrive{ID: "d1", Placement: PlacementFinalized}
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("expected valid json, got %v", err)
	}
	if decoded["placement_finalized"] != true || decoded["id"] != "d1" {
		t.Fatalf("unexpected payload %s", raw)
	}
}

func TestClone_IsDeep(t *testing.T) {
	d := newDriveWithApplicants(2)
	_ = d.SelectStudents(0, ids("s-00"))
	c := d.Clone()
	c.SelectionRounds[0].SelectedStudents[0] = "mutated"
	c.Applications[0].Status = ApplicationPlaced
	if d.SelectionRounds[0].SelectedStudents[0] != "s-00" || d.Applications[0].Status != ApplicationApplied {
		t.Fatal("clone shares state with original")
	}
}
