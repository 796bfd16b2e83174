package patch

import (
	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
	"github.com/Faultbox/midgard-ro/pkg/bincompress"
	"github.com/Faultbox/midgard-ro/pkg/binio"
)

const (
	rgzTagFile      = 'f'
	rgzTagDirectory = 'd'
	rgzTagEnd       = 'e'
)

// RGZEntry is one record of an RGZ patch: either a file carrying bytes, or
// a bare directory marker.
type RGZEntry interface {
	isRGZEntry()
}

// RGZFile stages Name for addition or replacement with Data.
type RGZFile struct {
	Name string
	Data []byte
}

func (RGZFile) isRGZEntry() {}

// RGZDirectory records a directory creation request.
type RGZDirectory struct {
	Name string
}

func (RGZDirectory) isRGZEntry() {}

// ParseRGZ decodes an RGZ patch archive: a single gzip stream of file and
// directory records terminated by an explicit end marker.
func ParseRGZ(data []byte) ([]RGZEntry, error) {
	body, err := bincompress.InflateGzip(data)
	if err != nil {
		return nil, err
	}

	r := binio.NewReader(body)
	var entries []RGZEntry

	for {
		if r.Len() == 0 {
			break
		}
		tag, err := r.Uint8()
		if err != nil {
			return nil, err
		}

		switch tag {
		case rgzTagFile:
			nameLen, err := r.Uint8()
			if err != nil {
				return nil, err
			}
			nameBytes, err := r.Fixed(int(nameLen))
			if err != nil {
				return nil, err
			}
			size, err := r.Uint32()
			if err != nil {
				return nil, err
			}
			fileData, err := r.Fixed(int(size))
			if err != nil {
				return nil, err
			}
			entries = append(entries, RGZFile{Name: string(nameBytes), Data: fileData})

		case rgzTagDirectory:
			nameLen, err := r.Uint8()
			if err != nil {
				return nil, err
			}
			nameBytes, err := r.Fixed(int(nameLen))
			if err != nil {
				return nil, err
			}
			entries = append(entries, RGZDirectory{Name: string(nameBytes)})

		case rgzTagEnd:
			return entries, nil

		default:
			return nil, archiveerr.New(archiveerr.InvalidFormat, "unknown RGZ tag 0x%02x", tag)
		}
	}

	return entries, nil
}
