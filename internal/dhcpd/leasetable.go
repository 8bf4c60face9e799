package dhcpd

import (
	"net"
	"sync"
	"time"
)

// leaseTable is the mutex-guarded in-memory store of ClientRecords, indexed
// both by ClientKey and by leased IP, per spec.md §5's "single mutex, no I/O
// under lock" concurrency model. It is grounded on the teacher's
// leaseindex.go (byAddr/byName maps kept in sync under one lock), adapted to
// the ClientKey/ClientRecord shape of this module's state machine.
type leaseTable struct {
	mu           sync.Mutex
	byKey        map[ClientKey]*ClientRecord
	byAddr       map[string]ClientKey
	blockedUntil map[string]time.Time

	// offerExpiration is the configured Configuration.OfferExpiration
	// (spec.md §3), threaded through to ClientRecord.Expired so the
	// configured value governs offer staleness instead of a fixed constant.
	offerExpiration time.Duration

	logger Logger
	dirty  func()
}

// newLeaseTable constructs an empty table. offerExpiration governs how long
// an un-renewed OFFER is kept before Tick/AddressInUse treat it as stale; a
// non-positive value falls back to defaultOfferExpiration. dirty, if
// non-nil, is called (synchronously, while still holding no lock) after
// InsertOrReplace, after Remove, and after a Tick that evicted records, to
// notify the persistence coalescing queue described in spec.md §5. Block,
// ClearAddress and Restore do not call it.
func newLeaseTable(logger Logger, offerExpiration time.Duration, dirty func()) *leaseTable {
	if logger == nil {
		logger = noopLogger{}
	}

	if offerExpiration <= 0 {
		offerExpiration = defaultOfferExpiration
	}

	return &leaseTable{
		byKey:           map[ClientKey]*ClientRecord{},
		byAddr:          map[string]ClientKey{},
		blockedUntil:    map[string]time.Time{},
		offerExpiration: offerExpiration,
		logger:          logger,
		dirty:           dirty,
	}
}

func addrKey(ip net.IP) string {
	return ip.To4().String()
}

// Get returns the record for key, or nil if absent.
func (t *leaseTable) Get(key ClientKey) *ClientRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.byKey[key].Clone()
}

// GetByAddr returns the record currently holding ip, or nil.
func (t *leaseTable) GetByAddr(ip net.IP) *ClientRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, ok := t.byAddr[addrKey(ip)]
	if !ok {
		return nil
	}

	return t.byKey[key].Clone()
}

// InsertOrReplace stores rec, replacing any prior record for the same key
// and releasing that prior record's address if it differs from rec.IP.
func (t *leaseTable) InsertOrReplace(rec *ClientRecord) {
	t.mu.Lock()
	if prev, ok := t.byKey[rec.Key]; ok && prev.IP != nil && !prev.IP.Equal(rec.IP) {
		delete(t.byAddr, addrKey(prev.IP))
	}

	t.byKey[rec.Key] = rec
	if rec.IP != nil {
		t.byAddr[addrKey(rec.IP)] = rec.Key
	}
	t.mu.Unlock()

	t.notifyDirty()
}

// Remove deletes the record for key, if present.
func (t *leaseTable) Remove(key ClientKey) {
	t.mu.Lock()
	if prev, ok := t.byKey[key]; ok {
		if prev.IP != nil {
			delete(t.byAddr, addrKey(prev.IP))
		}
		delete(t.byKey, key)
	}
	t.mu.Unlock()

	t.notifyDirty()
}

// Block marks ip as unavailable to the allocator until now+ttl, used for the
// DECLINE exclusion set (spec.md §9 open question 1).
func (t *leaseTable) Block(ip net.IP, now time.Time, ttl time.Duration) {
	t.mu.Lock()
	t.blockedUntil[addrKey(ip)] = now.Add(ttl)
	t.mu.Unlock()
}

// IsBlocked reports whether ip is still within its DECLINE exclusion
// window as of now.
func (t *leaseTable) IsBlocked(ip net.IP, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.blockedUntil[addrKey(ip)]

	return ok && now.Before(until)
}

// AddressInUse reports whether ip is currently held by a non-expired
// record, or is within its DECLINE exclusion window.
func (t *leaseTable) AddressInUse(ip net.IP, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if until, ok := t.blockedUntil[addrKey(ip)]; ok && now.Before(until) {
		return true
	}

	key, ok := t.byAddr[addrKey(ip)]
	if !ok {
		return false
	}

	rec := t.byKey[key]

	return rec != nil && !rec.Expired(now, t.offerExpiration)
}

// Snapshot returns a deep copy of every record, for persistence or
// inspection.
func (t *leaseTable) Snapshot() []*ClientRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*ClientRecord, 0, len(t.byKey))
	for _, rec := range t.byKey {
		out = append(out, rec.Clone())
	}

	return out
}

// Tick sweeps expired records and stale blocks, per spec.md §4.2: a record
// is evicted when state=Assigned and its lease has ended, or when
// state=Offered and it has sat un-renewed past offerExpiration. It is
// driven by the server's 1 Hz ticker goroutine (spec.md §5).
func (t *leaseTable) Tick(now time.Time) {
	var expiredKeys []ClientKey

	t.mu.Lock()
	for key, rec := range t.byKey {
		switch rec.State {
		case LeaseAssigned, LeaseOffered:
			if rec.Expired(now, t.offerExpiration) {
				expiredKeys = append(expiredKeys, key)
			}
		}
	}
	for key := range expiredKeys {
		rec := t.byKey[expiredKeys[key]]
		if rec.IP != nil {
			delete(t.byAddr, addrKey(rec.IP))
		}
		delete(t.byKey, expiredKeys[key])
	}

	for addr, until := range t.blockedUntil {
		if !now.Before(until) {
			delete(t.blockedUntil, addr)
		}
	}
	t.mu.Unlock()

	for _, key := range expiredKeys {
		t.logger.Debug("lease expired", "client_key", key)
	}

	if len(expiredKeys) > 0 {
		t.notifyDirty()
	}
}

// Restore loads recs into the table, replacing any existing contents. Used
// at startup to replay a ClientStore snapshot.
func (t *leaseTable) Restore(recs []*ClientRecord) {
	t.mu.Lock()
	t.byKey = map[ClientKey]*ClientRecord{}
	t.byAddr = map[string]ClientKey{}
	for _, rec := range recs {
		t.byKey[rec.Key] = rec
		if rec.IP != nil {
			t.byAddr[addrKey(rec.IP)] = rec.Key
		}
	}
	t.mu.Unlock()
}

// ClearAddress zeroes the IP field of the record at key, if any, and drops
// its entry from the address index. Used by the allocator when reusing a
// Released record's address for a different client (spec.md §4.4 step 5).
func (t *leaseTable) ClearAddress(key ClientKey) {
	t.mu.Lock()
	if rec, ok := t.byKey[key]; ok && rec.IP != nil {
		delete(t.byAddr, addrKey(rec.IP))
		rec.IP = nil
	}
	t.mu.Unlock()
}

func (t *leaseTable) notifyDirty() {
	if t.dirty != nil {
		t.dirty()
	}
}
