package storage

import (
	"encoding"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/utils"
)

// LevelDB archives loops on disk under keys loop/%06d/name. LevelDB admits a
// single writer, so one run owns the directory.
type LevelDB struct {
	db *leveldb.DB
}

func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening archive %s", path)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Save(name string, loop int, v encoding.BinaryMarshaler) (err error) {
	var data []byte
	if data, err = v.MarshalBinary(); err != nil {
		return errors.Wrapf(err, "encoding %s of loop %d", name, loop)
	}
	if err = l.db.Put(key(loop, name), data, nil); err != nil {
		return errors.Wrapf(err, "saving %s of loop %d", name, loop)
	}
	utils.Logger().Debug("archived", zap.String("name", name), zap.Int("loop", loop), zap.Int("bytes", len(data)))
	return
}

func (l *LevelDB) get(k []byte) (data []byte, err error) {
	if data, err = l.db.Get(k, nil); errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return
}

func (l *LevelDB) Load(name string, offset int, into encoding.BinaryUnmarshaler) error {
	return load(l, l.get, name, offset, into)
}

func (l *LevelDB) LoadMu(offset int) (*gf.BlockMatrix, error) { return loadMu(l, offset) }

// CompletedLoops counts the consecutive completed loops starting at 0.
func (l *LevelDB) CompletedLoops() (n int, err error) {
	var (
		done = make(map[int]bool)
		iter = l.db.NewIterator(util.BytesPrefix([]byte("loop/")), nil)
	)
	defer iter.Release()
	for iter.Next() {
		parts := strings.SplitN(strings.TrimPrefix(string(iter.Key()), "loop/"), "/", 2)
		if len(parts) != 2 || parts[1] != MuName {
			continue
		}
		loop, perr := strconv.Atoi(parts[0])
		if perr != nil {
			continue
		}
		done[loop] = true
	}
	if err = iter.Error(); err != nil {
		return 0, err
	}
	for done[n] {
		n++
	}
	return
}

func (l *LevelDB) Close() error { return l.db.Close() }
