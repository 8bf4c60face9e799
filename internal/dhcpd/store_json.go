package dhcpd

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/renameio/v2/maybe"
)

// storeDataVersion is the current version of the on-disk lease record
// format, carried in case a future format change needs a migration.
const storeDataVersion = 1

// defaultFilePerm matches the teacher's aghos.DefaultPermFile without
// pulling in the rest of that package.
const defaultFilePerm = 0o644

// storeData is the JSON envelope written to disk.
type storeData struct {
	Version int         `json:"version"`
	Records []*dbRecord `json:"records"`
}

// dbRecord is the on-disk form of a ClientRecord.
type dbRecord struct {
	Key         string `json:"key"`
	HWAddr      string `json:"mac"`
	IP          string `json:"ip"`
	Hostname    string `json:"hostname"`
	State       uint8  `json:"state"`
	OfferedAt   string `json:"offered_at,omitempty"`
	AssignedAt  string `json:"assigned_at,omitempty"`
	LeaseLength int64  `json:"lease_length_seconds,omitempty"`
}

func fromRecord(r *ClientRecord) *dbRecord {
	dr := &dbRecord{
		Key:         string(r.Key),
		HWAddr:      r.HWAddr.String(),
		Hostname:    r.Hostname,
		State:       uint8(r.State),
		LeaseLength: int64(r.LeaseLength / time.Second),
	}

	if r.IP != nil {
		dr.IP = r.IP.String()
	}

	if !r.OfferedAt.IsZero() {
		dr.OfferedAt = r.OfferedAt.Format(time.RFC3339)
	}

	if !r.AssignedAt.IsZero() {
		dr.AssignedAt = r.AssignedAt.Format(time.RFC3339)
	}

	return dr
}

func (dr *dbRecord) toRecord() (*ClientRecord, error) {
	var hw net.HardwareAddr
	if dr.HWAddr != "" {
		var err error
		hw, err = net.ParseMAC(dr.HWAddr)
		if err != nil {
			return nil, fmt.Errorf("parsing hardware address: %w", err)
		}
	}

	r := &ClientRecord{
		Key:         ClientKey(dr.Key),
		HWAddr:      hw,
		Hostname:    dr.Hostname,
		State:       LeaseState(dr.State),
		LeaseLength: time.Duration(dr.LeaseLength) * time.Second,
	}

	if dr.IP != "" {
		r.IP = net.ParseIP(dr.IP)
	}

	if dr.OfferedAt != "" {
		t, err := time.Parse(time.RFC3339, dr.OfferedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing offered_at: %w", err)
		}
		r.OfferedAt = t
	}

	if dr.AssignedAt != "" {
		t, err := time.Parse(time.RFC3339, dr.AssignedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing assigned_at: %w", err)
		}
		r.AssignedAt = t
	}

	return r, nil
}

// FileClientStore is a ClientStore that persists lease records as JSON,
// using atomic renameio writes. Grounded on the teacher's db.go (dataLeases
// envelope with a version field, dbLease conversion helpers, sorted output,
// maybe.WriteFile for atomicity); JSON chosen over XML for the reason
// recorded in DESIGN.md.
type FileClientStore struct {
	pools []net.IPNet
}

// NewFileClientStore constructs a store that discards, on Read, any record
// whose address falls outside every pool in pools, per spec.md §6. With no
// pools, no record is discarded for its address.
func NewFileClientStore(pools []net.IPNet) *FileClientStore {
	return &FileClientStore{pools: pools}
}

// Read implements ClientStore.
func (s *FileClientStore) Read(path string) ([]*ClientRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading store: %w", err)
	}

	var sd storeData
	if err = json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("decoding store: %w", err)
	}

	records := make([]*ClientRecord, 0, len(sd.Records))
	for _, dr := range sd.Records {
		if dr.State == uint8(LeaseOffered) {
			// Offered records are never trusted across a restart: the
			// client may have moved on to a different server's offer.
			continue
		}

		rec, err := dr.toRecord()
		if err != nil {
			continue
		}

		if rec.IP != nil && !s.inAnyPool(rec.IP) {
			continue
		}

		records = append(records, rec)
	}

	return records, nil
}

// Write implements ClientStore.
func (s *FileClientStore) Write(path string, records []*ClientRecord) error {
	out := make([]*dbRecord, 0, len(records))
	for _, r := range records {
		out = append(out, fromRecord(r))
	}

	slices.SortFunc(out, func(a, b *dbRecord) int {
		return strings.Compare(a.Key, b.Key)
	})

	sd := storeData{Version: storeDataVersion, Records: out}

	buf, err := json.Marshal(sd)
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	if err = maybe.WriteFile(path, buf, defaultFilePerm); err != nil {
		return fmt.Errorf("writing store: %w", err)
	}

	return nil
}

func (s *FileClientStore) inAnyPool(ip net.IP) bool {
	if len(s.pools) == 0 {
		return true
	}

	for _, pool := range s.pools {
		if pool.Contains(ip) {
			return true
		}
	}

	return false
}
