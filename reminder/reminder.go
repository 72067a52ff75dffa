// Package reminder implements the daily return-visit sweep: it picks the
// records whose return date is exactly two calendar days after the reference
// date and emails each patient once per sweep.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariebrainware/medelle-reminder/mailer"
	"github.com/ariebrainware/medelle-reminder/model"
	"github.com/ariebrainware/medelle-reminder/store"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/google/uuid"
)

// LeadDays is how many calendar days ahead of the reference date reminders are sent.
const LeadDays = 2

const defaultSendTimeout = 30 * time.Second

// Options configures a Dispatcher.
type Options struct {
	Location      *time.Location
	ClinicName    string
	From          string
	CC            string
	OperatorEmail string
	SendTimeout   time.Duration
	// Dedup skips records already stamped with notifiedAt and stamps each
	// successful send. Without it a second sweep on the same day repeats
	// every reminder.
	Dedup bool
	Now   func() time.Time
}

// Report summarises one sweep.
type Report struct {
	RunID         string `json:"run_id"`
	ReferenceDate string `json:"reference_date"`
	TargetDate    string `json:"target_date"`
	Matched       int    `json:"matched"`
	Sent          int    `json:"sent"`
	Failed        int    `json:"failed"`
	Skipped       int    `json:"skipped"`
}

// Dispatcher runs sweeps and the operator test send against an injected
// store and mail transport.
type Dispatcher struct {
	store     store.Store
	transport mailer.Transport
	opts      Options
}

func NewDispatcher(s store.Store, t mailer.Transport, opts Options) *Dispatcher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{store: s, transport: t, opts: opts}
}

// Location returns the zone dates are computed in.
func (d *Dispatcher) Location() *time.Location {
	return d.opts.Location
}

// LocalDate formats the calendar date of ref in loc.
func LocalDate(ref time.Time, loc *time.Location) string {
	return ref.In(loc).Format(model.DateLayout)
}

// TargetDate returns the YYYY-MM-DD date LeadDays calendar days after the date
// of ref in loc. Noon is used as the anchor so DST transitions at midnight
// cannot move the result to another day.
func TargetDate(ref time.Time, loc *time.Location) string {
	y, m, day := ref.In(loc).Date()
	return time.Date(y, m, day+LeadDays, 12, 0, 0, 0, loc).Format(model.DateLayout)
}

// Due filters records whose return date equals target. Records without an
// email never qualify. The second return value counts the date matches that
// were left out.
func (d *Dispatcher) Due(records []model.PatientRecord, target string) ([]model.PatientRecord, int) {
	due := make([]model.PatientRecord, 0)
	skipped := 0
	for _, r := range records {
		if r.ReturnDate != target {
			continue
		}
		if r.Email == "" {
			skipped++
			continue
		}
		if d.opts.Dedup && r.NotifiedAt != nil {
			skipped++
			continue
		}
		due = append(due, r)
	}
	return due, skipped
}

// SweepNow runs a sweep for the current instant.
func (d *Dispatcher) SweepNow(ctx context.Context) (Report, error) {
	return d.Sweep(ctx, d.opts.Now())
}

// Sweep sends one reminder per due record, one after the other. A failed send
// is logged and counted; it never stops the sweep. Only a store read failure
// or a cancelled ctx ends the sweep early.
func (d *Dispatcher) Sweep(ctx context.Context, ref time.Time) (Report, error) {
	report := Report{
		RunID:         uuid.NewString(),
		ReferenceDate: LocalDate(ref, d.opts.Location),
		TargetDate:    TargetDate(ref, d.opts.Location),
	}
	log := util.Logger().With().Str("run_id", report.RunID).Str("target_date", report.TargetDate).Logger()

	records, err := d.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list records: %w", err)
	}

	due, skipped := d.Due(records, report.TargetDate)
	report.Matched = len(due)
	report.Skipped = skipped
	log.Info().Int("due", len(due)).Int("skipped", skipped).Msg("reminder sweep started")

	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := d.sendReminder(ctx, r); err != nil {
			report.Failed++
			log.Error().Err(err).Int64("record_id", r.ID).Str("patient", util.SanitizeLogValue(r.Name)).Msg("reminder send failed")
			continue
		}
		report.Sent++
		log.Info().Int64("record_id", r.ID).Str("patient", util.SanitizeLogValue(r.Name)).Msg("reminder sent")

		if d.opts.Dedup {
			if err := d.store.MarkNotified(ctx, r.ID, d.opts.Now()); err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Warn().Err(err).Int64("record_id", r.ID).Msg("failed to stamp notifiedAt")
			}
		}
	}

	log.Info().Int("sent", report.Sent).Int("failed", report.Failed).Msg("reminder sweep finished")
	return report, nil
}

func (d *Dispatcher) sendReminder(ctx context.Context, r model.PatientRecord) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	_, err := d.transport.Send(sendCtx, ReminderMessage(r, d.opts.ClinicName, d.opts.From, d.opts.CC))
	return err
}

// ReminderMessage renders the 48h reminder for one record.
func ReminderMessage(r model.PatientRecord, clinic, from, cc string) mailer.Message {
	var visit string
	if r.Procedure != "" {
		visit = fmt.Sprintf("Seu retorno para \"%s\" está previsto", r.Procedure)
	} else {
		visit = "Seu retorno está previsto"
	}
	body := fmt.Sprintf(
		"Olá %s,\n\nLembrete %s: %s para daqui a 48 horas (%s).\n\nAguardamos sua confirmação!\n\nAtt, %s.",
		r.Name, clinic, visit, r.DisplayReturnDate(), clinic,
	)
	return mailer.Message{
		From:    from,
		To:      r.Email,
		CC:      cc,
		Subject: fmt.Sprintf("Lembrete: Retorno em 48h - %s", clinic),
		Body:    body,
	}
}
