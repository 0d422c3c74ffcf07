// Package metadata walks the extracted-file list to collect the
// pass-through attributes the core treats opaquely: mode, ownership,
// modification time, an optional ACL summary, and optional content digests.
package metadata

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sys/unix"
)

// Record is the metadata attached to one extracted file, passed through the
// core opaquely. The pipeline compares Size against the file's length at
// read time, and the script emitter uses the digests for its pre-flight
// checksum guard; the other fields are collected but not consumed.
type Record struct {
	Path    string
	Size    int64 // length recorded at listing time, for the size-mismatch check at read time
	Mode    os.FileMode
	UID     uint32
	GID     uint32
	ModTime time.Time
	ACL     string // best-effort POSIX ACL summary; empty if unavailable or disabled
	MD5     digest.Digest
	SHA256  digest.Digest
}

// Options toggles the optional, more expensive parts of the walk.
type Options struct {
	Ownership bool
	ACL       bool
	MD5       bool
	SHA256    bool
}

// DefaultOptions collects every optional field; CLI flags like
// --no-ownership turn individual fields off.
func DefaultOptions() Options {
	return Options{Ownership: true, ACL: true, MD5: true, SHA256: true}
}

// Collect stats path and, per opts, computes digests and reads ownership and
// ACL data. It never opens path for more than one sequential digest pass.
func Collect(path string, opts Options) (Record, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Record{}, fmt.Errorf("metadata: stat %s: %w", path, err)
	}

	rec := Record{
		Path:    path,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}

	if opts.Ownership {
		if sys, ok := info.Sys().(*syscall.Stat_t); ok {
			rec.UID = sys.Uid
			rec.GID = sys.Gid
		}
	}

	if opts.ACL {
		rec.ACL = readACL(path)
	}

	if opts.MD5 || opts.SHA256 {
		md5Sum, sha256Sum, err := digests(path, opts)
		if err != nil {
			return Record{}, err
		}
		rec.MD5 = md5Sum
		rec.SHA256 = sha256Sum
	}

	return rec, nil
}

// digests computes the requested content digests in a single read pass.
func digests(path string, opts Options) (md5Digest, sha256Digest digest.Digest, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("metadata: open %s for digest: %w", path, err)
	}
	defer f.Close()

	var writers []io.Writer
	md5Hash := md5.New()
	sha256Hash := sha256.New()
	if opts.MD5 {
		writers = append(writers, md5Hash)
	}
	if opts.SHA256 {
		writers = append(writers, sha256Hash)
	}

	mw := io.MultiWriter(writers...)
	if _, err := io.Copy(mw, f); err != nil {
		return "", "", fmt.Errorf("metadata: reading %s for digest: %w", path, err)
	}

	if opts.MD5 {
		md5Digest = digest.NewDigestFromBytes("md5", md5Hash.Sum(nil))
	}
	if opts.SHA256 {
		sha256Digest = digest.NewDigestFromBytes(digest.SHA256, sha256Hash.Sum(nil))
	}
	return md5Digest, sha256Digest, nil
}

// readACL best-effort reads the POSIX ACL of path via the system.posix_acl_access
// extended attribute, returning an empty string if ACLs are unsupported or
// absent, since ACL presence is optional pass-through data per the data
// model, not a hard requirement.
func readACL(path string) string {
	size, err := unix.Getxattr(path, "system.posix_acl_access", nil)
	if err != nil || size <= 0 {
		return ""
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, "system.posix_acl_access", buf)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", buf[:n])
}
