// Package pkg provides the core libraries for gilt, a tool that layers pinned
// snapshots of git repositories onto a working tree.
//
// # Overview
//
// The pkg directory is organized into four main areas:
//
//  1. [manifest] - Loading gilt.yml / gilt.toml into resolved dependencies
//  2. [git], [mirror], [overlay] - Mirror management and projection
//  3. [lock], [cache], [shell] - Infrastructure (locking, sync state, commands)
//  4. [pipeline] - Orchestration (lock → sync → project → post-commands)
//
// # Architecture
//
// The typical data flow through gilt:
//
//	gilt.yml
//	    ↓
//	[manifest] package (interpolate, decode, validate, resolve paths)
//	    ↓
//	[pipeline] package (one goroutine per dependency, bounded)
//	    ↓
//	[lock] → [mirror] (clone, fetch, checkout, pull) → [overlay]
//	    ↓
//	post-commands via [shell], sync record via [cache]
//
// # Quick Start
//
//	deps, err := manifest.Load("gilt.yml", manifest.Config{
//	    BaseDir: base,
//	    WorkDir: wd,
//	})
//	if err != nil {
//	    return err
//	}
//
//	sh := shell.NewRunner(false, logger)
//	runner := pipeline.NewRunner(git.NewCLI(sh), sh, nil, logger)
//	runner.WorkDir = wd
//	if err := runner.Run(ctx, deps).Err(); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Errors carry codes from [errors]. Configuration errors abort before any
// repository is touched; dependency errors are reported per dependency.
//
// [manifest]: github.com/matzehuels/gilt/pkg/manifest
// [git]: github.com/matzehuels/gilt/pkg/git
// [mirror]: github.com/matzehuels/gilt/pkg/mirror
// [overlay]: github.com/matzehuels/gilt/pkg/overlay
// [lock]: github.com/matzehuels/gilt/pkg/lock
// [cache]: github.com/matzehuels/gilt/pkg/cache
// [shell]: github.com/matzehuels/gilt/pkg/shell
// [pipeline]: github.com/matzehuels/gilt/pkg/pipeline
// [errors]: github.com/matzehuels/gilt/pkg/errors
package pkg
