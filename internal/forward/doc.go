// SPDX-License-Identifier: MPL-2.0

// Package forward hands control from the launcher to the interpreter inside
// an extracted runtime environment.
//
// Arguments are passed through untouched after the target's own arguments
// (for example "-m azure.cli"). The environment is the launcher's, with the
// bundled library directories placed first on PYTHONPATH, user site-packages
// disabled and any inherited PYTHONHOME removed.
//
// Two modes exist. ModeExec replaces the launcher process image, so exit
// status and signals belong to the interpreter directly. ModeSpawn starts
// the interpreter as a child with inherited standard streams, relays
// termination signals to it and reports how it ended.
package forward
