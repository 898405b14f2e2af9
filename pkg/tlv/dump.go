package tlv

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// Card dump template and field tags.
const (
	TagDump       = "E0"
	TagCardType   = "80"
	TagAID        = "81"
	TagDumpFile   = "E1"
	TagFileID     = "82"
	TagRecordSize = "83"
	TagFileData   = "84"
	TagFileType   = "85"
)

// Dump is the content of a recorded card application: the card type that
// produced it, the application id and the raw content of every file read.
//
//	E0
//	├── 80 card type name (ASCII)
//	├── 81 application id (3 bytes)
//	└── E1 (one per file)
//	    ├── 82 file number
//	    ├── 83 record size (record files only)
//	    ├── 84 file content
//	    └── 85 file type (value files only)
type Dump struct {
	CardType []byte     `tlv:"80" fmt:"ascii"`
	AID      []byte     `tlv:"81"`
	Files    []DumpFile `tlv:"E1"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// DumpFile is one file of a Dump.
type DumpFile struct {
	ID         []byte `tlv:"82"`
	RecordSize []byte `tlv:"83" fmt:"int"`
	Data       []byte `tlv:"84"`
	FileType   []byte `tlv:"85" fmt:"int"`
}

// EncodeDump serializes d as a single E0 template.
func EncodeDump(d *Dump) ([]byte, error) {
	content, err := Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("card dump: %w", err)
	}

	data, err := bertlv.Encode([]bertlv.TLV{{Tag: TagDump, TLVs: content}})
	if err != nil {
		return nil, fmt.Errorf("bertlv encode failed: %w", err)
	}
	return data, nil
}

// DecodeDump parses data holding an E0 template.
func DecodeDump(data []byte) (*Dump, error) {
	content, err := Find(data, TagDump)
	if err != nil {
		return nil, fmt.Errorf("card dump: %w", err)
	}

	d := &Dump{}
	if err := Unmarshal(content, d); err != nil {
		return nil, fmt.Errorf("card dump: %w", err)
	}
	if len(d.AID) != 3 {
		return nil, fmt.Errorf("card dump: application id must be 3 bytes, got %d", len(d.AID))
	}
	for i, f := range d.Files {
		if len(f.ID) != 1 {
			return nil, fmt.Errorf("card dump: file entry %d has no valid file number", i)
		}
	}
	return d, nil
}

// DescribeDump renders a human-readable report of d.
func DescribeDump(d *Dump) string {
	var sb strings.Builder
	sb.WriteString("=== CARD DUMP ===")

	sb.WriteString("\n  [Application]")
	writeFields(&sb, "Dump", d)

	for _, f := range d.Files {
		fmt.Fprintf(&sb, "\n  [File %X]", f.ID)
		writeFields(&sb, "File", f)
	}
	return sb.String()
}
