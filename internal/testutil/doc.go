// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv,
// MustUnsetenv), file operations (MustMkdirAll, MustWriteFile), in-memory
// runtime archives (BuildArchive, RuntimeTree) and stub entry-points that
// stand in for the bundled interpreter (WriteStubEntryPoint).
package testutil
