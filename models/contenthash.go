package models

import (
	"encoding/hex"
	"io"

	"golang.org/x/crypto/blake2b"
)

// ContentHash is a blake2b-256 digest identifying a file's bytes
// independent of name or location. Widened from the 32-bit rolling
// checksum originally proposed without changing the wire shape:
// contentHash stays a bytes field. No schema version is exchanged in
// the Handshake.
type ContentHash [32]byte

// HashReader digests r in full.
func HashReader(r io.Reader) (ContentHash, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return ContentHash{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return ContentHash{}, err
	}
	var out ContentHash
	copy(out[:], h.Sum(nil))
	return out, nil
}

func (c ContentHash) Equal(other ContentHash) bool { return c == other }

func (c ContentHash) String() string { return hex.EncodeToString(c[:]) }

func ContentHashFromBytes(b []byte) ContentHash {
	var out ContentHash
	copy(out[:], b)
	return out
}

// MarshalJSON renders the hash as a hex string rather than a raw byte
// array, so persisted directory snapshots stay human-readable.
func (c ContentHash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON accepts the hex string form written by MarshalJSON.
func (c *ContentHash) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*c = ContentHash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*c = ContentHashFromBytes(decoded)
	return nil
}
