package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"placement/internal/domain/drive"
)

func TestWritePlacedStudents(t *testing.T) {
	d := drive.JobDrive{
		CompanyName: "Acme",
		CTC:         12.5,
		PlacedStudents: []drive.PlacedStudent{
			{StudentID: "s1", StudentSnapshot: drive.StudentSnapshot{Name: "Asha", RollNumber: "CS001", Department: "cs", Email: "asha@campus.test", Phone: "900"}},
			{StudentID: "s2", StudentSnapshot: drive.StudentSnapshot{Name: "Ravi", RollNumber: "CS002", Department: "cs", Email: "ravi@campus.test", Phone: "901"}},
		},
	}
	var buf bytes.Buffer
	if err := WritePlacedStudents(&buf, d); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("expected readable workbook, got %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(placedSheet)
	if err != nil {
		t.Fatalf("expected rows, got %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Name" || rows[1][1] != "Asha" || rows[2][2] != "CS002" || rows[2][6] != "Acme" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestWritePlacedStudents_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePlacedStudents(&buf, drive.JobDrive{CompanyName: "Acme"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected workbook bytes")
	}
}
