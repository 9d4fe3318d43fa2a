package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"placement/internal/common"
	"placement/internal/domain/analytics"
	"placement/internal/domain/drive"
	"placement/internal/domain/student"
)

type fakeDriveRepo struct {
	mu     sync.Mutex
	drives map[common.UUID]drive.JobDrive
	saves  int
}

func newFakeDriveRepo() *fakeDriveRepo {
	return &fakeDriveRepo{drives: make(map[common.UUID]drive.JobDrive)}
}

func (r *fakeDriveRepo) put(d drive.JobDrive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Version == 0 {
		d.Version = 1
	}
	r.drives[d.ID] = d.Clone()
}

func (r *fakeDriveRepo) Create(ctx context.Context, d drive.JobDrive) (*drive.JobDrive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Version = 1
	r.drives[d.ID] = d.Clone()
	out := d.Clone()
	return &out, nil
}

func (r *fakeDriveRepo) GetByID(ctx context.Context, id common.UUID) (*drive.JobDrive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drives[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "drive not found", nil)
	}
	out := d.Clone()
	return &out, nil
}

func (r *fakeDriveRepo) Save(ctx context.Context, d drive.JobDrive) (*drive.JobDrive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.drives[d.ID]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "drive not found", nil)
	}
	if current.Version != d.Version {
		return nil, common.NewError(common.CodeConflict, "drive was modified concurrently", nil)
	}
	d.Version++
	r.drives[d.ID] = d.Clone()
	r.saves++
	out := d.Clone()
	return &out, nil
}

func (r *fakeDriveRepo) ListActive(ctx context.Context, limit, offset int) ([]drive.JobDrive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []drive.JobDrive
	for _, d := range r.drives {
		if d.IsActive {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (r *fakeDriveRepo) ListByApplicant(ctx context.Context, studentID common.UUID) ([]drive.JobDrive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []drive.JobDrive
	for _, d := range r.drives {
		if d.HasApplied(studentID) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

type fakeStudentRepo struct {
	mu                  sync.Mutex
	profiles            map[common.UUID]student.Profile
	verificationUpdates int
}

func newFakeStudentRepo(profiles ...student.Profile) *fakeStudentRepo {
	r := &fakeStudentRepo{profiles: make(map[common.UUID]student.Profile)}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *fakeStudentRepo) GetByID(ctx context.Context, id common.UUID) (*student.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "student not found", nil)
	}
	return &p, nil
}

func (r *fakeStudentRepo) Upsert(ctx context.Context, p student.Profile) (*student.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.profiles[p.ID]; ok {
		p.Consent = existing.Consent
		p.Verification = existing.Verification
		p.IsPlaced = existing.IsPlaced
		p.PlacementStatus = existing.PlacementStatus
	}
	r.profiles[p.ID] = p
	return &p, nil
}

func (r *fakeStudentRepo) UpdateConsent(ctx context.Context, id common.UUID, consent student.ConsentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return common.NewError(common.CodeNotFound, "student not found", nil)
	}
	p.Consent = consent
	r.profiles[id] = p
	return nil
}

func (r *fakeStudentRepo) UpdateVerification(ctx context.Context, id common.UUID, status student.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return common.NewError(common.CodeNotFound, "student not found", nil)
	}
	p.Verification = status
	r.profiles[id] = p
	r.verificationUpdates++
	return nil
}

func (r *fakeStudentRepo) stored(id common.UUID) student.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profiles[id]
}

type fakeAnalyticsRepo struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (r *fakeAnalyticsRepo) Create(ctx context.Context, event analytics.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeAnalyticsRepo) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeSignatureStore struct {
	mu    sync.Mutex
	saved map[common.UUID][]byte
}

func (s *fakeSignatureStore) Save(ctx context.Context, owner common.UUID, filename string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[common.UUID][]byte)
	}
	s.saved[owner] = data
	return "signatures/" + owner.String() + "/" + filename, nil
}
