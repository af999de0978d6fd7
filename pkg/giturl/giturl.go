// Package giturl parses git repository URIs into the identity gilt uses to
// address mirrors and locks.
//
// Both standard URIs (scheme://[user@]host[:port]/path, including git+ssh,
// git+https, git, rsync) and SCP-style shorthand ([user@]host:path, with an
// optional leading "/" on the path) are accepted:
//
//	r, _ := giturl.Parse("git@github.com:retr0h/ansible-etcd.git")
//	// r.Hostname == "github.com", r.Owner == "retr0h", r.Name == "ansible-etcd"
//	r.ResolvedName() // "retr0h.ansible-etcd"
package giturl

import (
	"net/url"
	"path"
	"strings"

	"github.com/matzehuels/gilt/pkg/errors"
)

const (
	// scmExt is the suffix stripped from repository names.
	scmExt = ".git"

	// localHost is the hostname given to file:// URIs and absolute paths,
	// which git accepts as clone sources.
	localHost = "localhost"
)

// Repo is the parsed identity of a repository URI.
type Repo struct {
	Hostname string // Host without user info or port
	Owner    string // Owner segment with any leading "~" removed; may be empty
	Name     string // Repository name without a trailing ".git"
}

// ResolvedName returns the key used to address the repository's mirror and
// lock: "owner.name", or just "name" when there is no owner.
func (r Repo) ResolvedName() string {
	if r.Owner == "" {
		return r.Name
	}
	return r.Owner + "." + r.Name
}

// Parse decomposes uri into its hostname, owner and name.
// A URI without an owner segment is not an error; Owner is left empty.
func Parse(uri string) (Repo, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Repo{}, errors.New(errors.ErrCodeInvalidURI, "repository URI cannot be empty")
	}

	if strings.HasPrefix(uri, "/") {
		uri = "file://" + uri
	}

	u, err := url.Parse(uri)
	if err == nil && u.Scheme == "file" {
		return fromPath(localHost, u.Path, uri)
	}
	if err != nil || u.Hostname() == "" {
		// SCP-style "URI", so fake an ssh one.
		u, err = url.Parse("ssh://" + scpToPath(uri))
		if err != nil {
			return Repo{}, errors.Wrap(errors.ErrCodeInvalidURI, err, "parse repository URI %q", uri)
		}
	}

	host := u.Hostname()
	if host == "" {
		return Repo{}, errors.New(errors.ErrCodeInvalidURI, "repository URI %q has no hostname", uri)
	}
	return fromPath(host, u.Path, uri)
}

// fromPath splits a URI path into owner and name.
func fromPath(host, p, uri string) (Repo, error) {
	p = strings.TrimSuffix(p, "/")
	p = strings.TrimSuffix(p, scmExt)

	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return Repo{}, errors.New(errors.ErrCodeInvalidURI, "repository URI %q has no repository name", uri)
	}

	var owner string
	if dir := path.Dir(p); dir != "." && dir != "/" && dir != "" {
		owner = strings.TrimLeft(path.Base(dir), "~")
	}

	return Repo{Hostname: host, Owner: owner, Name: name}, nil
}

// scpToPath rewrites "host:path" (or "host:/path") to "host/path".
func scpToPath(uri string) string {
	if strings.Contains(uri, ":/") {
		return strings.Replace(uri, ":/", "/", 1)
	}
	return strings.Replace(uri, ":", "/", 1)
}
