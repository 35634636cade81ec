// Package lockbox is the composition root of the vault engine.
//
// A vault is a single encrypted, compressed archive of credential records.
// Opening it decrypts the archive into memory, validates and repairs its
// layout, and keeps the records there until it is closed; nothing is
// written back until Save or Close.
//
// Features:
//
//   - **Authenticated archive**: Argon2id key derivation and XChaCha20-Poly1305, with
//     solid or per-file deflate compression.
//   - **Self-healing layout**: structural, schema and legacy checks with idempotent repair.
//   - **Pluggable storage**: direct filesystem access with atomic swaps, locks and
//     backups, or delegated I/O through a host bridge.
//   - **Scheduler aware**: operations run on the caller's scheduler when one is attached
//     to the context.
//
// Usage:
//
//	v, err := lockbox.New("./secrets.lbx", lockbox.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	if _, err := v.Open(ctx, passphrase); err != nil {
//		return err
//	}
//	defer v.Close(ctx)
//
//	id, err := v.AddFromTemplate("login", "GitHub", map[string]string{
//		"username": "octocat",
//		"password": secret,
//	})
package lockbox
