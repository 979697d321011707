package local

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	pkgerrors "starmap/pkg/errors"
)

// Feature-area keys. Each area persists as one versioned JSON blob.
const (
	KeySignatureSettings = "settings:signatures"
	KeyKillFilters       = "settings:kills"
	KeyWidgetLayout      = "settings:layout"
	KeyTimings           = "settings:timings"
)

// Store persists per-feature configuration blobs in a local key-value
// database. Every blob carries a version field consumed by an explicit
// migration step before use.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens (or creates) the settings database at path
func Open(path string, logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open settings store")
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// versionProbe reads just the version field of a stored blob
type versionProbe struct {
	Version int `json:"version"`
}

// get loads the raw blob for a key. Missing keys return (nil, nil).
func (s *Store) get(key string) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read settings blob")
	}
	return raw, nil
}

// put stores a blob for a key
func (s *Store) put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(err, "encode settings blob")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	return pkgerrors.Wrap(err, "write settings blob")
}

// SignatureSettings controls the signature table presentation
type SignatureSettings struct {
	Version   int    `json:"version"`
	SortField string `json:"sort_field"`
	SortAsc   bool   `json:"sort_asc"`
}

// CurrentSignatureVersion is the schema version written by this build
const CurrentSignatureVersion = 2

// DefaultSignatureSettings returns the out-of-the-box presentation
func DefaultSignatureSettings() SignatureSettings {
	return SignatureSettings{
		Version:   CurrentSignatureVersion,
		SortField: "id",
		SortAsc:   true,
	}
}

// LoadSignatureSettings loads and migrates the signature blob
func (s *Store) LoadSignatureSettings() (SignatureSettings, error) {
	raw, err := s.get(KeySignatureSettings)
	if err != nil || raw == nil {
		return DefaultSignatureSettings(), err
	}

	var probe versionProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		s.logger.Warn("corrupt signature settings, using defaults", zap.Error(err))
		return DefaultSignatureSettings(), nil
	}

	switch probe.Version {
	case 1:
		// v1 stored the sort order as a single signed field name
		// ("-id" for descending)
		var v1 struct {
			Version int    `json:"version"`
			Sort    string `json:"sort"`
		}
		if err := json.Unmarshal(raw, &v1); err != nil {
			return DefaultSignatureSettings(), nil
		}
		migrated := DefaultSignatureSettings()
		if v1.Sort != "" {
			if v1.Sort[0] == '-' {
				migrated.SortField = v1.Sort[1:]
				migrated.SortAsc = false
			} else {
				migrated.SortField = v1.Sort
			}
		}
		if err := s.put(KeySignatureSettings, migrated); err != nil {
			return migrated, err
		}
		return migrated, nil

	case CurrentSignatureVersion:
		var settings SignatureSettings
		if err := json.Unmarshal(raw, &settings); err != nil {
			return DefaultSignatureSettings(), nil
		}
		return settings, nil

	default:
		s.logger.Warn("unknown signature settings version, using defaults",
			zap.Int("version", probe.Version),
		)
		return DefaultSignatureSettings(), nil
	}
}

// SaveSignatureSettings persists the signature blob at the current version
func (s *Store) SaveSignatureSettings(settings SignatureSettings) error {
	settings.Version = CurrentSignatureVersion
	return s.put(KeySignatureSettings, settings)
}

// KillFilters controls which kill-feed entries are shown
type KillFilters struct {
	Version  int     `json:"version"`
	MinValue float64 `json:"min_value"`
	ShowNPC  bool    `json:"show_npc"`
}

// CurrentKillFiltersVersion is the schema version written by this build
const CurrentKillFiltersVersion = 1

// LoadKillFilters loads and migrates the kill filter blob
func (s *Store) LoadKillFilters() (KillFilters, error) {
	defaults := KillFilters{Version: CurrentKillFiltersVersion, ShowNPC: true}

	raw, err := s.get(KeyKillFilters)
	if err != nil || raw == nil {
		return defaults, err
	}

	var filters KillFilters
	if err := json.Unmarshal(raw, &filters); err != nil {
		s.logger.Warn("corrupt kill filters, using defaults", zap.Error(err))
		return defaults, nil
	}
	if filters.Version != CurrentKillFiltersVersion {
		return defaults, nil
	}
	return filters, nil
}

// SaveKillFilters persists the kill filter blob at the current version
func (s *Store) SaveKillFilters(filters KillFilters) error {
	filters.Version = CurrentKillFiltersVersion
	return s.put(KeyKillFilters, filters)
}

// WidgetLayout persists the saved panel arrangement as an opaque blob
// the presentation layer owns
type WidgetLayout struct {
	Version int             `json:"version"`
	Layout  json.RawMessage `json:"layout,omitempty"`
}

// CurrentWidgetLayoutVersion is the schema version written by this build
const CurrentWidgetLayoutVersion = 1

// LoadWidgetLayout loads the widget layout blob
func (s *Store) LoadWidgetLayout() (WidgetLayout, error) {
	defaults := WidgetLayout{Version: CurrentWidgetLayoutVersion}

	raw, err := s.get(KeyWidgetLayout)
	if err != nil || raw == nil {
		return defaults, err
	}

	var layout WidgetLayout
	if err := json.Unmarshal(raw, &layout); err != nil {
		s.logger.Warn("corrupt widget layout, using defaults", zap.Error(err))
		return defaults, nil
	}
	if layout.Version != CurrentWidgetLayoutVersion {
		return defaults, nil
	}
	return layout, nil
}

// SaveWidgetLayout persists the widget layout blob at the current version
func (s *Store) SaveWidgetLayout(layout WidgetLayout) error {
	layout.Version = CurrentWidgetLayoutVersion
	return s.put(KeyWidgetLayout, layout)
}

// Timings holds the optimistic-state grace periods consumed by the
// pending-state manager
type Timings struct {
	Version       int `json:"version"`
	AddGraceMS    int `json:"add_grace_ms"`
	RemoveGraceMS int `json:"remove_grace_ms"`
}

// CurrentTimingsVersion is the schema version written by this build
const CurrentTimingsVersion = 1

// LoadTimings loads the grace-period blob, falling back to the given
// defaults
func (s *Store) LoadTimings(defaults Timings) (Timings, error) {
	defaults.Version = CurrentTimingsVersion

	raw, err := s.get(KeyTimings)
	if err != nil || raw == nil {
		return defaults, err
	}

	var timings Timings
	if err := json.Unmarshal(raw, &timings); err != nil {
		s.logger.Warn("corrupt timings blob, using defaults", zap.Error(err))
		return defaults, nil
	}
	if timings.Version != CurrentTimingsVersion {
		return defaults, nil
	}
	return timings, nil
}

// SaveTimings persists the grace-period blob at the current version
func (s *Store) SaveTimings(timings Timings) error {
	timings.Version = CurrentTimingsVersion
	return s.put(KeyTimings, timings)
}
