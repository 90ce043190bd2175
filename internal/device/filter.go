package device

import (
	"strings"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

// Filter reasons, used as Stats.Filtered keys.
const (
	FilterIgnored     = "ignored"
	FilterExcludedMAC = "excluded_mac"
	FilterExcludedPrx = "excluded_prox"
	FilterNotIncluded = "not_included"
)

// FilterConfig lists the addresses and proximity identifiers that decide
// whether a record may touch the catalog. Addresses must be canonical and
// proximity identifiers lower case; config.Validate produces both.
type FilterConfig struct {
	// IncludeEnabled turns the inclusion lists on. With it off they are
	// ignored entirely.
	IncludeEnabled bool
	IncludeMAC     []string
	IncludeProx    []string
	ExcludeMAC     []string
	ExcludeProx    []string

	// IgnoreMAC always wins. The local adapter address belongs here.
	IgnoreMAC []string
}

// Filter evaluates FilterConfig against records. It is immutable once
// built and safe for concurrent use.
type Filter struct {
	includeEnabled bool
	includeMAC     map[string]struct{}
	includeProx    []string
	excludeMAC     map[string]struct{}
	excludeProx    []string
	ignoreMAC      map[string]struct{}
}

// NewFilter builds a Filter. Entries are trimmed; empty entries dropped.
func NewFilter(cfg FilterConfig) *Filter {
	return &Filter{
		includeEnabled: cfg.IncludeEnabled,
		includeMAC:     addressSet(cfg.IncludeMAC),
		includeProx:    proxList(cfg.IncludeProx),
		excludeMAC:     addressSet(cfg.ExcludeMAC),
		excludeProx:    proxList(cfg.ExcludeProx),
		ignoreMAC:      addressSet(cfg.IgnoreMAC),
	}
}

// Ignored reports whether address is on the global ignore list.
func (f *Filter) Ignored(address string) bool {
	_, ok := f.ignoreMAC[address]
	return ok
}

// Check returns the reason a record is rejected, or "" when it is accepted.
// address is the record's canonical address. stored is the existing catalog
// entry, if any; its proximity identifier is used when the record carries
// none.
func (f *Filter) Check(address string, rec btmon.AttributeRecord, stored *Device) string {
	if f.Ignored(address) {
		return FilterIgnored
	}
	if _, ok := f.excludeMAC[address]; ok {
		return FilterExcludedMAC
	}

	prox := rec.ProximityID()
	if prox == "" && stored != nil {
		prox = stored.ProximityID()
	}
	if matchPrefix(f.excludeProx, prox) {
		return FilterExcludedPrx
	}

	if f.includeEnabled && (len(f.includeMAC) > 0 || len(f.includeProx) > 0) {
		if _, ok := f.includeMAC[address]; ok {
			return ""
		}
		if matchPrefix(f.includeProx, prox) {
			return ""
		}
		return FilterNotIncluded
	}
	return ""
}

// matchPrefix reports whether any entry is a prefix of prox, so a bare
// UUID selects every major/minor of a beacon family.
func matchPrefix(entries []string, prox string) bool {
	if prox == "" {
		return false
	}
	for _, e := range entries {
		if strings.HasPrefix(prox, e) {
			return true
		}
	}
	return false
}

func addressSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, a := range list {
		if c, ok := btmon.CanonicalAddress(a); ok {
			set[c] = struct{}{}
		}
	}
	return set
}

func proxList(list []string) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
