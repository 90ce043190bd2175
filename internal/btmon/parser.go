package btmon

import (
	"regexp"
	"strconv"
	"strings"
)

// Field names the AttributeRecord field an Extractor writes.
type Field string

// Extracted fields.
const (
	FieldAddress       Field = "address"
	FieldAddressType   Field = "address_type"
	FieldName          Field = "name"
	FieldCompany       Field = "company"
	FieldClassOfDevice Field = "class_of_device"
	FieldMajorClass    Field = "major_class"
	FieldMinorClass    Field = "minor_class"
	FieldAppearance    Field = "appearance"
	FieldLEFlags       Field = "le_flags"
	FieldServiceUUIDs  Field = "service_uuids"
	FieldProximityUUID Field = "proximity_uuid"
	FieldMajorMinor    Field = "major_minor"
	FieldRSSI          Field = "rssi"
	FieldTxPower       Field = "tx_power"
	FieldClassic       Field = "classic"
	FieldLE            Field = "le"
)

// Extractor is one row of the parse table. Pattern is matched against each
// line with its indentation removed. When Scope is set, the line's structural
// parent (the nearest preceding line with less indentation, also trimmed)
// must match it too. Apply receives the submatches of Pattern.
//
// Scalar fields are last-match-wins; Apply implementations for set fields
// add to the set.
type Extractor struct {
	Field   Field
	Pattern *regexp.Regexp
	Scope   *regexp.Regexp
	Apply   func(d *Draft, m []string)
}

// Draft accumulates one record while a chunk is parsed.
type Draft struct {
	Record   AttributeRecord
	flags    set
	services set
}

// AddLEFlag adds an advertising flag to the set.
func (d *Draft) AddLEFlag(flag string) { d.flags.add(flag) }

// AddServiceUUID adds a service identifier to the set.
func (d *Draft) AddServiceUUID(uuid string) { d.services.add(uuid) }

// Parser turns chunks into AttributeRecords. It holds no mutable state and
// is safe for concurrent use.
type Parser struct {
	extractors []Extractor
}

// NewParser returns a Parser using the default extractor table.
func NewParser() *Parser {
	return &Parser{extractors: DefaultExtractors()}
}

// NewParserWithExtractors returns a Parser using a custom table.
func NewParserWithExtractors(extractors []Extractor) *Parser {
	return &Parser{extractors: extractors}
}

// Parse extracts the device attributes carried by chunk. Only HCI and MGMT
// event chunks are interpreted; everything else, including our own
// commands, yields an empty record. Parse never fails and the result depends
// only on the chunk's line texts.
//
// An event can report several devices. Parse returns the first; the
// ingestion path uses ParseAll.
func (p *Parser) Parse(chunk Chunk) AttributeRecord {
	recs := p.ParseAll(chunk)
	if len(recs) == 0 {
		return AttributeRecord{}
	}
	return recs[0]
}

// ParseAll returns one record per device entry in chunk. Advertising
// reports with "Num reports: N" and inquiry results with several responses
// yield N records; each sees the event's shared lines plus its own entry.
// Non-event chunks yield nil.
func (p *Parser) ParseAll(chunk Chunk) []AttributeRecord {
	if chunk.Kind != KindHCIEvent && chunk.Kind != KindMgmtEvent {
		return nil
	}

	entries := splitEntries(chunk.Lines)
	recs := make([]AttributeRecord, 0, len(entries))
	for _, lines := range entries {
		recs = append(recs, p.parseLines(lines))
	}
	return recs
}

func (p *Parser) parseLines(lines []RawLine) AttributeRecord {
	d := &Draft{flags: set{}, services: set{}}

	type frame struct {
		indent int
		text   string
	}
	var stack []frame

	for _, line := range lines {
		indent, text := splitIndent(line.Text)
		if text == "" {
			continue
		}
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := ""
		if len(stack) > 0 {
			parent = stack[len(stack)-1].text
		}
		stack = append(stack, frame{indent: indent, text: text})

		for i := range p.extractors {
			ex := &p.extractors[i]
			if ex.Scope != nil && !ex.Scope.MatchString(parent) {
				continue
			}
			m := ex.Pattern.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			ex.Apply(d, m)
		}
	}

	return d.finish()
}

var (
	// Advertising report entries start at "Event type:".
	reportEntryStart = regexp.MustCompile(`^Event type: `)

	// Legacy inquiry results list each response from its "Address:" line.
	inquiryEntryStart = regexp.MustCompile(`^Address: `)
	multiInquiry      = regexp.MustCompile(`^> HCI Event: Inquiry Result(?: with RSSI)? \(`)
)

// splitEntries cuts an event into per-device line sets. Lines before the
// first entry (header, subevent, counts) are shared by every entry. Events
// with fewer than two entries are returned whole.
func splitEntries(lines []RawLine) [][]RawLine {
	if len(lines) < 2 {
		return [][]RawLine{lines}
	}

	start := reportEntryStart
	if _, header := splitIndent(lines[0].Text); multiInquiry.MatchString(header) {
		start = inquiryEntryStart
	}

	var starts []int
	for i := 1; i < len(lines); i++ {
		if _, text := splitIndent(lines[i].Text); start.MatchString(text) {
			starts = append(starts, i)
		}
	}
	if len(starts) < 2 {
		return [][]RawLine{lines}
	}

	shared := lines[:starts[0]]
	entries := make([][]RawLine, 0, len(starts))
	for i, from := range starts {
		to := len(lines)
		if i+1 < len(starts) {
			to = starts[i+1]
		}
		entry := make([]RawLine, 0, len(shared)+to-from)
		entry = append(entry, shared...)
		entry = append(entry, lines[from:to]...)
		entries = append(entries, entry)
	}
	return entries
}

// finish normalises the accumulated record.
func (d *Draft) finish() AttributeRecord {
	rec := d.Record
	rec.LEFlags = d.flags.sorted()
	rec.ServiceUUIDs = d.services.sorted()

	if rec.Address == "" {
		rec.AddressType = ""
		rec.Vendor = ""
		return rec
	}
	if rec.AddressType == AddressRandom {
		rec.Vendor = VendorRandomAddress
	} else {
		rec.Vendor = LookupVendor(rec.Address)
	}
	return rec
}

// splitIndent returns the width of the leading whitespace (tabs count as 8)
// and the trimmed text.
func splitIndent(s string) (int, string) {
	indent := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
			indent++
		case '\t':
			indent += 8
		default:
			return indent, strings.TrimRight(s[i:], " \t\r")
		}
	}
	return indent, ""
}

// DefaultExtractors returns the extractor table for btmon text output.
// Order matters only within a field: later matches overwrite earlier ones.
func DefaultExtractors() []Extractor {
	return []Extractor{
		// Addresses. Inquiry results, remote name, connection events and
		// advertising reports print "Address:"; MGMT events prefix the
		// transport; LE connection events use "Peer address:".
		{
			Field:   FieldAddress,
			Pattern: regexp.MustCompile(`^(?:(LE|BR/EDR) )?(?:Peer a|A)ddress: ([0-9A-Fa-f:]{17})(?:\s+\((.*)\))?`),
			Apply:   applyAddress,
		},
		{
			Field:   FieldAddressType,
			Pattern: regexp.MustCompile(`^(?:Peer a|A)ddress type: (Public|Random)`),
			Apply: func(d *Draft, m []string) {
				d.Record.AddressType = AddressType(strings.ToLower(m[1]))
			},
		},

		// Names: "Name: x", "Name (complete): x", "Name (short): x".
		{
			Field:   FieldName,
			Pattern: regexp.MustCompile(`^Name(?: \((?:complete|short)\))?: (.*\S)`),
			Apply: func(d *Draft, m []string) {
				d.Record.Name = m[1]
			},
		},

		{
			Field:   FieldCompany,
			Pattern: regexp.MustCompile(`^Company: (.*\S)`),
			Apply: func(d *Draft, m []string) {
				d.Record.Company = m[1]
			},
		},

		// Class of device and its decoded children.
		{
			Field:   FieldClassOfDevice,
			Pattern: regexp.MustCompile(`^Class: (0x[0-9A-Fa-f]{6})`),
			Apply: func(d *Draft, m []string) {
				d.Record.ClassOfDevice = strings.ToLower(m[1])
			},
		},
		{
			Field:   FieldMajorClass,
			Pattern: regexp.MustCompile(`^Major class: (.*\S)`),
			Apply: func(d *Draft, m []string) {
				d.Record.MajorClass = m[1]
			},
		},
		{
			Field:   FieldMinorClass,
			Pattern: regexp.MustCompile(`^Minor class: (.*\S)`),
			Apply: func(d *Draft, m []string) {
				d.Record.MinorClass = m[1]
			},
		},
		{
			Field:   FieldAppearance,
			Pattern: regexp.MustCompile(`^Appearance: (.*\S)`),
			Apply: func(d *Draft, m []string) {
				d.Record.Appearance = m[1]
			},
		},

		// Advertising flags are listed one per line under "Flags: 0x..".
		{
			Field:   FieldLEFlags,
			Pattern: regexp.MustCompile(`^(.*\S)$`),
			Scope:   regexp.MustCompile(`^Flags: 0x[0-9A-Fa-f]+`),
			Apply: func(d *Draft, m []string) {
				d.AddLEFlag(m[1])
			},
		},

		// Service UUIDs are listed under "16-bit Service UUIDs (complete): 2 entries"
		// and friends, one per line: "Heart Rate (0x180d)".
		{
			Field:   FieldServiceUUIDs,
			Pattern: regexp.MustCompile(`^(.*\S)$`),
			Scope:   regexp.MustCompile(`^(?:16|32|128)-bit Service UUIDs`),
			Apply: func(d *Draft, m []string) {
				d.AddServiceUUID(m[1])
			},
		},

		// iBeacon payload under "Company: Apple, Inc. (76)".
		{
			Field:   FieldProximityUUID,
			Pattern: regexp.MustCompile(`^UUID: ([0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12})$`),
			Scope:   regexp.MustCompile(`^Company: `),
			Apply: func(d *Draft, m []string) {
				d.Record.ProximityUUID = strings.ToLower(m[1])
			},
		},
		{
			Field:   FieldMajorMinor,
			Pattern: regexp.MustCompile(`^Version: (\d+)\.(\d+)$`),
			Scope:   regexp.MustCompile(`^Company: `),
			Apply: func(d *Draft, m []string) {
				d.Record.Major = m[1]
				d.Record.Minor = m[2]
			},
		},

		{
			Field:   FieldRSSI,
			Pattern: regexp.MustCompile(`^RSSI: (-?\d+) dBm`),
			Apply: func(d *Draft, m []string) {
				if v, ok := parseBounded(m[1], MinRSSI, MaxRSSI); ok {
					d.Record.RSSI = &v
				}
			},
		},
		{
			Field:   FieldTxPower,
			Pattern: regexp.MustCompile(`^TX power: (-?\d+) (?i:dbm?)\b`),
			Apply: func(d *Draft, m []string) {
				if v, ok := parseBounded(m[1], MinTxPower, MaxTxPower); ok {
					d.Record.TxPower = &v
				}
			},
		},

		// Mode markers come from the event header, the LE subevent line
		// directly under an LE Meta Event, or the MGMT transport prefix.
		// Advertised names and data never set a mode.
		{
			Field:   FieldClassic,
			Pattern: regexp.MustCompile(`^> HCI Event: (Extended Inquiry Result|Inquiry Result(?: with RSSI)?|Remote Name Req Complete|Connect Complete|Connect Request) \(0x`),
			Apply:   markClassic,
		},
		{
			Field:   FieldClassic,
			Pattern: regexp.MustCompile(`^(BR/EDR Address): `),
			Apply:   markClassic,
		},
		{
			Field:   FieldLE,
			Pattern: regexp.MustCompile(`^(LE Extended Advertising Report|LE Advertising Report|LE Enhanced Connection Complete|LE Connection Complete) \(0x`),
			Scope:   regexp.MustCompile(`^> HCI Event: LE Meta Event `),
			Apply:   markLE,
		},
		{
			Field:   FieldLE,
			Pattern: regexp.MustCompile(`^(LE Address): `),
			Apply:   markLE,
		},
	}
}

func markClassic(d *Draft, m []string) {
	d.Record.Classic = true
	d.Record.Event = m[1]
}

func markLE(d *Draft, m []string) {
	d.Record.LE = true
	d.Record.Event = m[1]
}

// applyAddress sets the address and infers the address type from the
// transport prefix or btmon's annotation.
func applyAddress(d *Draft, m []string) {
	addr, ok := CanonicalAddress(m[2])
	if !ok {
		return
	}
	d.Record.Address = addr

	switch {
	case m[1] == "BR/EDR":
		d.Record.AddressType = AddressPublic
	case isRandomAnnotation(m[3]):
		d.Record.AddressType = AddressRandom
	case m[1] == "LE" && d.Record.AddressType == "":
		d.Record.AddressType = AddressPublic
	}
}

func isRandomAnnotation(note string) bool {
	switch note {
	case "Resolvable", "Non-Resolvable", "Static":
		return true
	}
	return false
}

func parseBounded(s string, lo, hi int) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}
