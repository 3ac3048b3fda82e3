package dto

import (
	"bytes"
	"encoding/json"
)

// BlkioOp is the operation column of a block I/O entry
type BlkioOp int

const (
	// BlkioOpMissing means the entry carried no op field
	BlkioOpMissing BlkioOp = iota
	BlkioOpRead
	BlkioOpWrite
	BlkioOpSync
	BlkioOpAsync
	BlkioOpTotal
	// BlkioOpUnknown covers any other spelling (e.g. the lowercase ops of cgroup v2)
	BlkioOpUnknown
)

var blkioOpNames = map[string]BlkioOp{
	"Read":  BlkioOpRead,
	"Write": BlkioOpWrite,
	"Sync":  BlkioOpSync,
	"Async": BlkioOpAsync,
	"Total": BlkioOpTotal,
}

// ParseBlkioOp maps the docker spelling of an operation to a BlkioOp.
// Matching is case sensitive.
func ParseBlkioOp(s string) BlkioOp {
	if op, ok := blkioOpNames[s]; ok {
		return op
	}
	return BlkioOpUnknown
}

func (o BlkioOp) String() string {
	switch o {
	case BlkioOpMissing:
		return ""
	case BlkioOpRead:
		return "Read"
	case BlkioOpWrite:
		return "Write"
	case BlkioOpSync:
		return "Sync"
	case BlkioOpAsync:
		return "Async"
	case BlkioOpTotal:
		return "Total"
	default:
		return "Unknown"
	}
}

// UnmarshalJSON decodes the op string. A null op is kept as Unknown so the
// entry is ignored rather than rejected.
func (o *BlkioOp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = BlkioOpUnknown
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = ParseBlkioOp(s)
	return nil
}

// MarshalJSON encodes the op with its docker spelling
func (o BlkioOp) MarshalJSON() ([]byte, error) {
	if o == BlkioOpMissing {
		return []byte("null"), nil
	}
	return json.Marshal(o.String())
}
