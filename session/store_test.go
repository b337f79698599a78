package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "ps", 30*time.Minute)
	return store, func() {
		rdb.Close()
		mr.Close()
	}
}

func testRecord() *Record {
	return &Record{
		ID:                  "sess-1",
		AccountID:           "acct-1",
		InstrumentID:        "pi-1",
		Partner:             "webstore",
		Amount:              49.99,
		Currency:            "EUR",
		Country:             "DE",
		ChallengeStatus:     "Unknown",
		ChallengeType:       "PSD2Challenge",
		IsChallengeRequired: true,
		ProtocolVersion:     "V21",
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord()
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Revision != 1 {
		t.Fatalf("revision after create = %d, want 1", rec.Revision)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccountID != rec.AccountID || got.ChallengeStatus != "Unknown" || got.Amount != rec.Amount {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Revision != 1 {
		t.Fatalf("revision after get = %d, want 1", got.Revision)
	}
}

func TestCreateDuplicateRejected(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Create(ctx, testRecord()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, testRecord()); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate create: got %v, want ErrExists", err)
	}
}

func TestGetMissing(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateAdvancesRevision(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord()
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec.ChallengeStatus = "Succeeded"
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Revision != 2 {
		t.Fatalf("revision after update = %d, want 2", rec.Revision)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ChallengeStatus != "Succeeded" {
		t.Fatalf("status not persisted: %s", got.ChallengeStatus)
	}
}

func TestUpdateStaleRevisionConflicts(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord()
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	stale := *rec
	rec.ChallengeStatus = "Succeeded"
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("first update: %v", err)
	}

	stale.ChallengeStatus = "Failed"
	if err := store.Update(ctx, &stale); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("stale update: got %v, want ErrRevisionConflict", err)
	}
}

func TestTerminalStatusNeverRegressed(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord()
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec.ChallengeStatus = "Succeeded"
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("terminal update: %v", err)
	}

	rec.ChallengeStatus = "Unknown"
	if err := store.Update(ctx, rec); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("regressing update: got %v, want ErrTerminalStatus", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ChallengeStatus != "Succeeded" {
		t.Fatalf("terminal status lost: %s", got.ChallengeStatus)
	}
}

func TestTerminalStatusIdempotentRewrite(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord()
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec.ChallengeStatus = "Failed"
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("terminal update: %v", err)
	}

	// Same terminal status may be rewritten, e.g. to attach a payload.
	rec.ProviderPayload = []byte(`{"transStatus":"N"}`)
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("idempotent rewrite: %v", err)
	}
}

func TestDerivedRecordRoundTrip(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	derived := &DerivedRecord{
		SessionID:          "sess-1",
		InstrumentID:       "pi-1",
		RequiredChallenges: []string{"3ds2"},
	}
	if err := store.PutDerived(ctx, derived); err != nil {
		t.Fatalf("put derived: %v", err)
	}
	got, err := store.GetDerived(ctx, "pi-1")
	if err != nil {
		t.Fatalf("get derived: %v", err)
	}
	if got.SessionID != "sess-1" || len(got.RequiredChallenges) != 1 {
		t.Fatalf("derived mismatch: %+v", got)
	}

	if _, err := store.GetDerived(ctx, "pi-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing derived: got %v, want ErrNotFound", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord()
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: got %v, want ErrNotFound", err)
	}
}

func TestSchemaV1DropsNewerFields(t *testing.T) {
	rec := testRecord()
	rec.SchemaVersion = SchemaV1
	rec.PurchaseOrderID = "po-1"
	rec.EnabledFlights = []string{"someflight"}

	data, err := encodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SchemaVersion != SchemaV1 {
		t.Fatalf("schema version = %d", got.SchemaVersion)
	}
	if got.PurchaseOrderID != "" || got.EnabledFlights != nil {
		t.Fatalf("v1 record kept v2 fields: %+v", got)
	}
}

func TestSchemaV2KeepsAllFields(t *testing.T) {
	rec := testRecord()
	rec.SchemaVersion = SchemaV2
	rec.PurchaseOrderID = "po-1"
	rec.EnabledFlights = []string{"someflight"}

	data, err := encodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PurchaseOrderID != "po-1" || len(got.EnabledFlights) != 1 {
		t.Fatalf("v2 fields lost: %+v", got)
	}
}

func TestDecodeCorruptBlob(t *testing.T) {
	if _, err := decodeRecord([]byte{99, '{', '}'}); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("got %v, want ErrCorruptRecord", err)
	}
	if _, err := decodeRecord([]byte{2, 'x'}); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("got %v, want ErrCorruptRecord", err)
	}
	if _, err := decodeRecord(nil); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("got %v, want ErrCorruptRecord", err)
	}
}
