package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariebrainware/medelle-reminder/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference is 2026-10-18 10:00 in São Paulo.
var reference = time.Date(2026, 10, 18, 13, 0, 0, 0, time.UTC)

func TestTargetDate(t *testing.T) {
	tests := []struct {
		name string
		ref  time.Time
		loc  *time.Location
		want string
	}{
		{name: "same day in zone", ref: reference, loc: saoPaulo, want: "2026-10-20"},
		{name: "utc already next day", ref: time.Date(2026, 10, 19, 1, 30, 0, 0, time.UTC), loc: saoPaulo, want: "2026-10-20"},
		{name: "utc same instant", ref: time.Date(2026, 10, 19, 1, 30, 0, 0, time.UTC), loc: time.UTC, want: "2026-10-21"},
		{name: "year rollover", ref: time.Date(2026, 12, 30, 15, 0, 0, 0, time.UTC), loc: saoPaulo, want: "2027-01-01"},
		{name: "leap day", ref: time.Date(2028, 2, 27, 15, 0, 0, 0, time.UTC), loc: saoPaulo, want: "2028-02-29"},
		{name: "month end", ref: time.Date(2026, 4, 29, 15, 0, 0, 0, time.UTC), loc: saoPaulo, want: "2026-05-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetDate(tt.ref, tt.loc))
		})
	}
}

func TestLocalDate(t *testing.T) {
	ref := time.Date(2026, 10, 19, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-18", LocalDate(ref, saoPaulo))
	assert.Equal(t, "2026-10-19", LocalDate(ref, time.UTC))
}

func TestDue(t *testing.T) {
	stamp := reference
	records := []model.PatientRecord{
		{ID: 1, Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"},
		{ID: 2, Name: "Bia", Email: "b@x.com", ReturnDate: "2026-10-23"},
		{ID: 3, Name: "Cau", Email: "", ReturnDate: "2026-10-20"},
		{ID: 4, Name: "Duda", Email: "d@x.com", ReturnDate: "2026-10-20T09:00"},
		{ID: 5, Name: "Eva", Email: "e@x.com", ReturnDate: "2026-10-20", NotifiedAt: &stamp},
	}

	d := newTestDispatcher(nil, nil, false)
	due, skipped := d.Due(records, "2026-10-20")
	var ids []int64
	for _, r := range due {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1, 5}, ids)
	assert.Equal(t, 1, skipped)

	d = newTestDispatcher(nil, nil, true)
	due, skipped = d.Due(records, "2026-10-20")
	require.Len(t, due, 1)
	assert.Equal(t, int64(1), due[0].ID)
	assert.Equal(t, 2, skipped)
}

func TestSweep_SendsOnlyToTargetDate(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t,
		model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"},
		model.PatientRecord{Name: "Bia", Email: "b@x.com", ReturnDate: "2026-10-23"},
	)
	tr := &recordingTransport{}
	d := newTestDispatcher(s, tr, false)

	report, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com"}, tr.recipients())
	assert.Equal(t, "2026-10-18", report.ReferenceDate)
	assert.Equal(t, "2026-10-20", report.TargetDate)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Sent)
	assert.Zero(t, report.Failed)
	assert.NotEmpty(t, report.RunID)
}

func TestSweep_OneSendPerMatchingRecord(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t,
		model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"},
		model.PatientRecord{Name: "Ana de novo", Email: "a@x.com", ReturnDate: "2026-10-20"},
		model.PatientRecord{Name: "Bia", Email: "b@x.com", ReturnDate: "2026-10-20"},
		model.PatientRecord{Name: "Cau", Email: "c@x.com", ReturnDate: "2026-10-19"},
		model.PatientRecord{Name: "Duda", Email: "d@x.com", ReturnDate: "2026-10-21"},
	)
	tr := &recordingTransport{}
	d := newTestDispatcher(s, tr, false)

	report, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a@x.com", "a@x.com", "b@x.com"}, tr.recipients())
	assert.Equal(t, 3, report.Sent)
}

func TestSweep_SkipsRecordsWithoutEmail(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t, model.PatientRecord{Name: "Cau", ReturnDate: "2026-10-20"})
	tr := &recordingTransport{}
	d := newTestDispatcher(s, tr, false)

	report, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)

	assert.Empty(t, tr.recipients())
	assert.Equal(t, 0, report.Matched)
	assert.Equal(t, 1, report.Skipped)
}

func TestSweep_FailureDoesNotStopOtherSends(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t,
		model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"},
		model.PatientRecord{Name: "Bia", Email: "b@x.com", ReturnDate: "2026-10-20"},
		model.PatientRecord{Name: "Cau", Email: "c@x.com", ReturnDate: "2026-10-20"},
	)
	tr := &recordingTransport{failFor: map[string]error{"b@x.com": errors.New("mailbox unavailable")}}
	d := newTestDispatcher(s, tr, false)

	report, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)

	assert.Len(t, tr.recipients(), 3)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)
}

func TestSweep_RepeatsWithoutDedup(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t, model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"})
	tr := &recordingTransport{}
	d := newTestDispatcher(s, tr, false)

	_, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)
	_, err = d.Sweep(context.Background(), reference)
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com", "a@x.com"}, tr.recipients())
}

func TestSweep_DedupSendsOnce(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t, model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"})
	tr := &recordingTransport{}
	d := newTestDispatcher(s, tr, true)

	first, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)
	second, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com"}, tr.recipients())
	assert.Equal(t, 1, first.Sent)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)

	records, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].NotifiedAt)
}

func TestSweep_DedupDoesNotStampFailedSends(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t, model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"})
	tr := &recordingTransport{failFor: map[string]error{"a@x.com": errors.New("relay down")}}
	d := newTestDispatcher(s, tr, true)

	report, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	records, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Nil(t, records[0].NotifiedAt)
}

func TestSweep_PerSendTimeout(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t,
		model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"},
		model.PatientRecord{Name: "Bia", Email: "b@x.com", ReturnDate: "2026-10-20"},
	)
	tr := &recordingTransport{block: true}
	d := NewDispatcher(s, tr, Options{Location: saoPaulo, SendTimeout: 20 * time.Millisecond})

	start := time.Now()
	report, err := d.Sweep(context.Background(), reference)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	assert.Len(t, tr.recipients(), 2)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSweep_CancelledContext(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t, model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"})
	tr := &recordingTransport{}
	d := newTestDispatcher(s, tr, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Sweep(ctx, reference)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tr.recipients())
}

func TestSweep_StoreFailure(t *testing.T) {
	quietLogs(t)
	tr := &recordingTransport{}
	d := newTestDispatcher(failingStore{}, tr, false)

	report, err := d.Sweep(context.Background(), reference)
	assert.Error(t, err)
	assert.Equal(t, "2026-10-20", report.TargetDate)
	assert.Empty(t, tr.recipients())
}

func TestSweepNow_UsesClock(t *testing.T) {
	quietLogs(t)
	s := newTestStore(t, model.PatientRecord{Name: "Ana", Email: "a@x.com", ReturnDate: "2026-10-20"})
	tr := &recordingTransport{}
	d := NewDispatcher(s, tr, Options{Location: saoPaulo, Now: func() time.Time { return reference }})

	report, err := d.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", report.TargetDate)
	assert.Equal(t, 1, report.Sent)
}

func TestReminderMessage(t *testing.T) {
	r := model.PatientRecord{Name: "Ana", Email: "a@x.com", Procedure: "Botox", ReturnDate: "2026-10-20"}

	msg := ReminderMessage(r, "Medelle Estética", "contato@medelle.com", "recepcao@medelle.com")
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "contato@medelle.com", msg.From)
	assert.Equal(t, "recepcao@medelle.com", msg.CC)
	assert.Equal(t, "Lembrete: Retorno em 48h - Medelle Estética", msg.Subject)
	assert.Contains(t, msg.Body, "Olá Ana,")
	assert.Contains(t, msg.Body, `Seu retorno para "Botox" está previsto para daqui a 48 horas (20/10/2026)`)

	r.Procedure = ""
	msg = ReminderMessage(r, "Medelle Estética", "contato@medelle.com", "")
	assert.Contains(t, msg.Body, "Seu retorno está previsto para daqui a 48 horas (20/10/2026)")
	assert.Empty(t, msg.CC)
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(nil, nil, Options{})
	assert.Equal(t, time.Local, d.Location())
	assert.Equal(t, defaultSendTimeout, d.opts.SendTimeout)
	assert.NotNil(t, d.opts.Now)
}
