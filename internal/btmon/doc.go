// Package btmon reconstructs and interprets the text output of the BlueZ
// btmon HCI monitor.
//
// # Pipeline
//
//	RawLine --Chunker--> Chunk --Parser--> AttributeRecord
//
// btmon prints one header per protocol event in column 0, prefixed with a
// direction marker ('>' controller to host, '<' host to controller, '@'
// management, '=' system note), followed by indented detail lines:
//
//	> HCI Event: LE Meta Event (0x3e) plen 43          #12 [hci0] 10.417
//	      LE Advertising Report (0x02)
//	        Num reports: 1
//	        Address: 5A:3B:11:22:33:44 (Resolvable)
//	        RSSI: -72 dBm (0xb8)
//
// The Chunker groups a header with its detail lines. It is robust against
// lines arriving before the first header, oversized lines and unbounded
// events; see ChunkerConfig.
//
// The Parser applies an ordered table of Extractors to every line of an
// event chunk. Extractors may be scoped to the line's structural parent so
// that, for example, only the lines listed beneath "16-bit Service UUIDs"
// are taken as service identifiers. Parse is pure: the same chunk always
// yields the same record.
//
// # Diagnostics
//
// FileMirror writes chunks (chunker_debug) or raw lines (btmon_rawlog) to a
// file without ever blocking the pipeline.
package btmon
