package patch

import (
	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
	"github.com/Faultbox/midgard-ro/pkg/bincompress"
	"github.com/Faultbox/midgard-ro/pkg/binio"
)

const thorMagic = "ASSF (C) 2007 Aeomin DEV\x1A\x04\x0C\x00"

const (
	thorModeAdd    = 0x01
	thorModeRemove = 0x02
)

// ThorEntry is one record of a THOR patch: either an add carrying new file
// bytes, or a remove naming a file to drop.
type ThorEntry interface {
	isThorEntry()
}

// ThorAdd stages filename for addition or replacement with Data.
type ThorAdd struct {
	Filename string
	Data     []byte
}

func (ThorAdd) isThorEntry() {}

// ThorRemove requests that filename be removed.
type ThorRemove struct {
	Filename string
}

func (ThorRemove) isThorEntry() {}

// ParseThor decodes a THOR patch archive: a 28-byte fixed magic followed by
// a single gzip stream of add/remove records.
func ParseThor(data []byte) ([]ThorEntry, error) {
	if len(data) < len(thorMagic) || string(data[:len(thorMagic)]) != thorMagic {
		return nil, archiveerr.New(archiveerr.InvalidHeader, "bad THOR magic")
	}

	body, err := bincompress.InflateGzip(data[len(thorMagic):])
	if err != nil {
		return nil, err
	}

	r := binio.NewReader(body)
	var entries []ThorEntry

	for r.Len() > 0 {
		mode, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		nameLen, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		nameBytes, err := r.Fixed(int(nameLen))
		if err != nil {
			return nil, err
		}
		filename := string(nameBytes)

		switch mode {
		case thorModeAdd:
			length, err := r.Uint32()
			if err != nil {
				return nil, err
			}
			payload, err := r.Fixed(int(length))
			if err != nil {
				return nil, err
			}
			entries = append(entries, ThorAdd{Filename: filename, Data: payload})
		case thorModeRemove:
			entries = append(entries, ThorRemove{Filename: filename})
		default:
			// forward-compatible: unknown modes are skipped silently
		}
	}

	return entries, nil
}
