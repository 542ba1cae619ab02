// Package identity verifies credentials against an external identity source.
// The deployment historically delegated to the host's login database; this
// implementation reads an htpasswd-style file with bcrypt hashes, which keeps
// the same "verification happens outside the application database" contract.
package identity

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Verifier answers whether a username/password pair is valid. Any error is
// treated by callers as "not authenticated".
type Verifier interface {
	Verify(username, password string) (bool, error)
}

// HtpasswdVerifier verifies passwords against a bcrypt htpasswd file. The
// file is read once and cached; restart the process to pick up changes.
type HtpasswdVerifier struct {
	path string

	once    sync.Once
	loadErr error
	hashes  map[string]string
}

// NewHtpasswdVerifier creates a verifier backed by the given file path.
func NewHtpasswdVerifier(path string) *HtpasswdVerifier {
	return &HtpasswdVerifier{path: path}
}

// Verify implements Verifier.
func (v *HtpasswdVerifier) Verify(username, password string) (bool, error) {
	v.once.Do(v.load)
	if v.loadErr != nil {
		return false, v.loadErr
	}

	hash, ok := v.hashes[username]
	if !ok {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

func (v *HtpasswdVerifier) load() {
	file, err := os.Open(v.path)
	if err != nil {
		v.loadErr = fmt.Errorf("open htpasswd file: %w", err)
		return
	}
	defer file.Close()

	hashes := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, hash, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		hashes[name] = hash
	}
	if err := scanner.Err(); err != nil {
		v.loadErr = fmt.Errorf("read htpasswd file: %w", err)
		return
	}

	v.hashes = hashes
}

// Static is a fixed in-memory Verifier, useful for tests and development.
type Static map[string]string

// Verify implements Verifier by comparing plaintext passwords.
func (s Static) Verify(username, password string) (bool, error) {
	stored, ok := s[username]
	return ok && stored == password, nil
}
