package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ariebrainware/medelle-reminder/mailer"
	"github.com/ariebrainware/medelle-reminder/model"
	"github.com/ariebrainware/medelle-reminder/store"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var saoPaulo = mustLoad("America/Sao_Paulo")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// recordingTransport captures every message and fails for addresses listed in failFor.
type recordingTransport struct {
	mu      sync.Mutex
	sent    []mailer.Message
	failFor map[string]error
	block   bool
}

func (r *recordingTransport) Send(ctx context.Context, msg mailer.Message) (mailer.Receipt, error) {
	r.mu.Lock()
	r.sent = append(r.sent, msg)
	block := r.block
	err := r.failFor[msg.To]
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return mailer.Receipt{}, ctx.Err()
	}
	if err != nil {
		return mailer.Receipt{}, err
	}
	return mailer.Receipt{MessageID: "id-" + msg.To, PreviewURL: "http://preview/id-" + msg.To}, nil
}

func (r *recordingTransport) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.To)
	}
	return out
}

// failingStore fails List and delegates nothing else.
type failingStore struct {
	store.Store
}

func (failingStore) List(context.Context) ([]model.PatientRecord, error) {
	return nil, errors.New("disk on fire")
}

func quietLogs(t *testing.T) {
	t.Helper()
	restore := util.SetLoggerForTest(zerolog.Nop())
	t.Cleanup(restore)
}

func newTestStore(t *testing.T, records ...model.PatientRecord) store.Store {
	t.Helper()
	s, err := store.NewJSONFileStore(filepath.Join(t.TempDir(), "patients.json"))
	require.NoError(t, err)
	for i := range records {
		_, err := s.Append(context.Background(), &records[i])
		require.NoError(t, err)
	}
	return s
}

func newTestDispatcher(s store.Store, tr mailer.Transport, dedup bool) *Dispatcher {
	return NewDispatcher(s, tr, Options{
		Location:      saoPaulo,
		ClinicName:    "Medelle Estética",
		From:          "contato@medelle.com",
		OperatorEmail: "operador@medelle.com",
		SendTimeout:   time.Second,
		Dedup:         dedup,
	})
}
