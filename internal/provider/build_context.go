package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// contextHash fingerprints the inputs of an image build: the Dockerfile, given
// either as a path or inline content, and every file under contextDir.
// With inline content the Dockerfile is written by the build itself, so it is
// left out of the directory walk and the directory may not exist yet.
func contextHash(dockerfile, content, contextDir string) (string, error) {
	h := sha256.New()
	skip := ""

	if content != "" {
		io.WriteString(h, "content:"+hashBytes([]byte(content)))
		skip = dockerfile
	} else {
		sum, err := hashFile(dockerfile)
		if err != nil {
			return "", err
		}
		io.WriteString(h, "dockerfile:"+sum)
	}

	if contextDir != "" {
		sum, err := hashDirectory(contextDir, skip)
		switch {
		case err == nil:
			io.WriteString(h, "context:"+sum)
		case content != "" && errors.Is(err, fs.ErrNotExist):
		default:
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashDirectory covers relative paths and file contents, except the file at
// skip. WalkDir visits entries in lexical order, so the result is stable.
func hashDirectory(root, skip string) (string, error) {
	h := sha256.New()
	if skip != "" {
		skip = filepath.Clean(skip)
	}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == skip {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		io.WriteString(h, filepath.ToSlash(rel)+"\x00")
		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}
		sum, err := hashFile(path)
		if err != nil {
			return err
		}
		io.WriteString(h, sum)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
