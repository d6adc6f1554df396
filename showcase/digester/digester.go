package digester

import (
	"crypto/sha1" //nolint:gosec // git object ids are sha1
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// ErrMismatch is returned by Verify when the stored
// blob id differs from the one computed locally.
var ErrMismatch = errors.New("blob digest mismatch")

// BlobSHA computes the git blob object id of content:
// sha1 over "blob <len>\x00" followed by the bytes.
func BlobSHA(content []byte) string {
	ha := sha1.New() //nolint:gosec // git object ids are sha1

	ha.Write([]byte("blob "))
	ha.Write([]byte(strconv.Itoa(len(content))))
	ha.Write([]byte{0})
	ha.Write(content)

	return hex.EncodeToString(ha.Sum(nil))
}

// Verify compares the blob id reported by a remote for
// content against the locally computed one. An empty
// reported id is accepted since not every host returns
// it.
func Verify(content []byte, reported string) error {
	const errCtx = "verifying blob digest"

	if reported == "" {
		return nil
	}

	calc := BlobSHA(content)
	if calc != reported {
		return fmt.Errorf(
			"%s: %w: local %s, remote %s",
			errCtx, ErrMismatch, calc, reported,
		)
	}

	return nil
}
