package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/ui"
	bolt "go.etcd.io/bbolt"
)

const (
	BucketSettings    = "settings"
	BucketCalibration = "calibration"

	KeyCurrentSettings = "current"
)

type Persistence interface {
	Init() error

	LoadSettings() (configuration.Settings, error)
	SaveSettings(settings configuration.Settings) error
	DeleteSettings() error

	LoadCalibration(domain string) ([]configuration.CalibrationPoint, error)
	SaveCalibration(domain string, table []configuration.CalibrationPoint) error
	DeleteCalibration(domain string) error
}

type persistence struct {
	dbPath string
}

func NewPersistence(dbPath string) Persistence {
	p := &persistence{
		dbPath: dbPath,
	}
	return p
}

func (p persistence) Init() (err error) {
	// get parent path of dbPath
	parentDir := filepath.Dir(p.dbPath)
	_, err = os.Stat(parentDir)
	if errors.Is(err, os.ErrNotExist) {
		// create directory
		ui.Info("Creating directory for db: %s", parentDir)
		err = os.MkdirAll(parentDir, 0755)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p persistence) openPersistence() (db *bolt.DB, err error) {
	db, err = bolt.Open(p.dbPath, 0600, &bolt.Options{Timeout: 1 * time.Minute})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// LoadSettings loads the runtime settings saved by a previous run,
// returns os.ErrNotExist if there are none.
func (p persistence) LoadSettings() (configuration.Settings, error) {
	var settings configuration.Settings
	err := p.load(BucketSettings, KeyCurrentSettings, &settings)
	return settings, err
}

func (p persistence) SaveSettings(settings configuration.Settings) error {
	// the calibration table has its own bucket
	settings.FanCalibration = nil
	return p.save(BucketSettings, KeyCurrentSettings, settings)
}

func (p persistence) DeleteSettings() error {
	return p.delete(BucketSettings, KeyCurrentSettings)
}

// LoadCalibration loads the calibration table of the given domain, sorted by duty
func (p persistence) LoadCalibration(domain string) ([]configuration.CalibrationPoint, error) {
	var table []configuration.CalibrationPoint
	err := p.load(BucketCalibration, domain, &table)
	return table, err
}

func (p persistence) SaveCalibration(domain string, table []configuration.CalibrationPoint) error {
	return p.save(BucketCalibration, domain, table)
}

func (p persistence) DeleteCalibration(domain string) error {
	return p.delete(BucketCalibration, domain)
}

func (p persistence) save(bucket string, key string, value interface{}) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return b.Put([]byte(key), data)
	})
}

func (p persistence) load(bucket string, key string, result interface{}) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	corrupt := false
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return os.ErrNotExist
		}
		v := b.Get([]byte(key))
		if v == nil {
			return os.ErrNotExist
		}

		err := json.Unmarshal(v, result)
		if err != nil {
			// if we cannot read the saved data, delete it
			ui.Warning("Unable to unmarshal saved %s data for %s: %v", bucket, key, err)
			corrupt = true
			err := b.Delete([]byte(key))
			if err != nil {
				ui.Error("Unable to delete corrupt data key %s: %v", key, err)
			}
		}
		return nil
	})
	if err == nil && corrupt {
		return os.ErrNotExist
	}
	return err
}

func (p persistence) delete(bucket string, key string) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			// nothing saved yet
			return nil
		}
		if b.Get([]byte(key)) == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
