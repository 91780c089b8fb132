package discovery

import (
	"strings"
	"sync"

	"github.com/ternarybob/reperio/internal/models"
)

// Dedup tracks which domains and ATS boards the system already knows about,
// so parallel sources skip work another source has claimed. One instance is
// hydrated per discovery run and shared by every source in that run.
type Dedup struct {
	mu      sync.Mutex
	domains map[string]struct{}
	boards  map[string]struct{} // "family:identifier", lowercase
}

func NewDedup() *Dedup {
	return &Dedup{
		domains: make(map[string]struct{}),
		boards:  make(map[string]struct{}),
	}
}

// AddDomain seeds a known domain during hydration.
func (d *Dedup) AddDomain(domain string) {
	domain = models.NormalizeDomain(domain)
	if domain == "" {
		return
	}
	d.mu.Lock()
	d.domains[domain] = struct{}{}
	d.mu.Unlock()
}

// AddBoard seeds a known (family, identifier) pair during hydration.
func (d *Dedup) AddBoard(family, identifier string) {
	key := boardKey(family, identifier)
	if key == "" {
		return
	}
	d.mu.Lock()
	d.boards[key] = struct{}{}
	d.mu.Unlock()
}

// IsDomainKnown reports whether a domain is already claimed. Sources use this
// to skip HTTP work early; the authoritative check-and-claim is ClaimDomain.
func (d *Dedup) IsDomainKnown(domain string) bool {
	domain = models.NormalizeDomain(domain)
	if domain == "" {
		return false
	}
	d.mu.Lock()
	_, ok := d.domains[domain]
	d.mu.Unlock()
	return ok
}

// IsBoardKnown reports whether an ATS board is already claimed.
func (d *Dedup) IsBoardKnown(family, identifier string) bool {
	key := boardKey(family, identifier)
	if key == "" {
		return false
	}
	d.mu.Lock()
	_, ok := d.boards[key]
	d.mu.Unlock()
	return ok
}

// ClaimDomain marks a domain as discovered, reporting false when it was
// already known. Check and mark are a single atomic step so two parallel
// sources emitting the same domain cannot both claim it.
func (d *Dedup) ClaimDomain(domain string) bool {
	domain = models.NormalizeDomain(domain)
	if domain == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.domains[domain]; ok {
		return false
	}
	d.domains[domain] = struct{}{}
	return true
}

// ClaimBoard marks an ATS board as discovered, reporting false when it was
// already known.
func (d *Dedup) ClaimBoard(family, identifier string) bool {
	key := boardKey(family, identifier)
	if key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.boards[key]; ok {
		return false
	}
	d.boards[key] = struct{}{}
	return true
}

// MarkDiscovered claims a domain and its board pair in one call. Used by the
// admission path, which has already decided the record is new.
func (d *Dedup) MarkDiscovered(domain, family, identifier string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := models.NormalizeDomain(domain); n != "" {
		d.domains[n] = struct{}{}
	}
	if key := boardKey(family, identifier); key != "" {
		d.boards[key] = struct{}{}
	}
}

// Size reports how many domains and boards are tracked.
func (d *Dedup) Size() (domains, boards int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.domains), len(d.boards)
}

func boardKey(family, identifier string) string {
	if family == "" || identifier == "" {
		return ""
	}
	return strings.ToLower(family) + ":" + strings.ToLower(identifier)
}
