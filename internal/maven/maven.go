// Package maven defines the MavenResolver external-collaborator
// interface spec.md §6(b) describes, plus an in-process reference
// implementation sufficient to let ProjectConfig report resolved
// artifact paths without performing real network dependency resolution.
// A production deployment substitutes a networked resolver.
package maven

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// ResolvedArtifact is one dependency resolved to a location on disk.
type ResolvedArtifact struct {
	Coordinate string
	Path       string
}

// Resolver is the external collaborator interface the core programs
// against (spec.md §6(b)): addRepository, addDependency, resolve.
type Resolver interface {
	AddRepository(url string)
	AddDependency(coordinate string)
	Resolve(ctx context.Context) ([]ResolvedArtifact, error)
}

// LocalResolver resolves group:artifact:version coordinates against a
// filesystem-backed cache directory rather than a network repository.
// It is safe for concurrent use by a single goroutine at a time (the
// core never resolves the same project's dependencies concurrently).
type LocalResolver struct {
	cacheDir     string
	repositories []string
	dependencies []string
}

// NewLocalResolver returns a resolver that looks up artifacts under
// cacheDir/<group>/<artifact>/<version>/<artifact>-<version>.jar.
func NewLocalResolver(cacheDir string) *LocalResolver {
	return &LocalResolver{cacheDir: cacheDir}
}

// AddRepository records a repository URL. LocalResolver does not
// contact repositories; it only records them for diagnostic purposes.
func (r *LocalResolver) AddRepository(url string) {
	r.repositories = append(r.repositories, url)
}

// AddDependency records a Maven coordinate (group:artifact:version) to
// resolve.
func (r *LocalResolver) AddDependency(coordinate string) {
	r.dependencies = append(r.dependencies, coordinate)
}

// Resolve computes the cache path for every recorded dependency. A
// coordinate that cannot be parsed into three colon-separated parts is
// reported as a config error (spec.md §7), not a fatal error.
func (r *LocalResolver) Resolve(ctx context.Context) ([]ResolvedArtifact, error) {
	out := make([]ResolvedArtifact, 0, len(r.dependencies))
	for _, coord := range r.dependencies {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		parts := strings.Split(coord, ":")
		if len(parts) != 3 {
			return out, fmt.Errorf("invalid maven coordinate %q: expected group:artifact:version", coord)
		}
		group, artifact, version := parts[0], parts[1], parts[2]
		path := filepath.Join(r.cacheDir, filepath.FromSlash(strings.ReplaceAll(group, ".", "/")), artifact, version, fmt.Sprintf("%s-%s.jar", artifact, version))
		out = append(out, ResolvedArtifact{Coordinate: coord, Path: path})
	}
	return out, nil
}
