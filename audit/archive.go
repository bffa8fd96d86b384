package audit

import (
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	proverif "github.com/sbaloglu/proverif-codes"
	"github.com/sbaloglu/proverif-codes/core/store/kv"
	"github.com/sbaloglu/proverif-codes/serde"
	"golang.org/x/xerrors"
)

// Archive stores replay records in a key/value database, one bucket per
// model. The replay itself stays in memory; only its outcome is persisted.
type Archive struct {
	db     kv.DB
	ctx    serde.Context
	fac    RecordFactory
	logger zerolog.Logger
}

// NewArchive opens the archive database at the given path. The context
// decides the serialization format of the records.
func NewArchive(path string, ctx serde.Context) (*Archive, error) {
	db, err := kv.New(path)
	if err != nil {
		return nil, xerrors.Errorf("couldn't open archive: %v", err)
	}

	a := &Archive{
		db:     db,
		ctx:    ctx,
		logger: proverif.Logger.With().Str("archive", path).Logger(),
	}

	return a, nil
}

// Save stores the record and returns its identifier. A record without an
// identifier is assigned a fresh one.
func (a *Archive) Save(rec Record) (string, error) {
	if rec.Model == "" {
		return "", xerrors.New("record has no model")
	}

	if rec.ID == "" {
		rec.ID = xid.New().String()
	}

	data, err := rec.Serialize(a.ctx)
	if err != nil {
		return "", xerrors.Errorf("couldn't serialize record: %v", err)
	}

	err = a.db.Update([]byte(rec.Model), func(b kv.Bucket) error {
		return b.Set([]byte(rec.ID), data)
	})
	if err != nil {
		return "", xerrors.Errorf("couldn't store record: %v", err)
	}

	a.logger.Debug().Str("model", rec.Model).Str("id", rec.ID).Msg("record saved")

	return rec.ID, nil
}

// Get returns the record of the model stored under the identifier.
func (a *Archive) Get(model, id string) (Record, error) {
	var data []byte

	err := a.db.View([]byte(model), func(b kv.Bucket) error {
		value := b.Get([]byte(id))
		if value == nil {
			return xerrors.Errorf("record '%s' not found", id)
		}

		data = append([]byte{}, value...)

		return nil
	})
	if err != nil {
		return Record{}, xerrors.Errorf("couldn't read record: %v", err)
	}

	m, err := a.fac.Deserialize(a.ctx, data)
	if err != nil {
		return Record{}, xerrors.Errorf("couldn't deserialize record: %v", err)
	}

	rec, ok := m.(Record)
	if !ok {
		return Record{}, xerrors.Errorf("invalid message of type '%T'", m)
	}

	return rec, nil
}

// List returns the identifiers of the records of the model, in key order.
func (a *Archive) List(model string) ([]string, error) {
	ids := []string{}

	err := a.db.View([]byte(model), func(b kv.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("couldn't list records: %v", err)
	}

	return ids, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
