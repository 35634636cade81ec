package lockbox_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aretw0/lockbox"
)

// Example_basic creates a vault, stores a credential and reads it back.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "lockbox-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := lockbox.DefaultConfig()
	cfg.KDF.Time, cfg.KDF.MemoryKiB, cfg.KDF.Threads = 1, 8*1024, 1

	vault, err := lockbox.New(filepath.Join(tmpDir, "secrets.lbx"), lockbox.WithConfig(cfg))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	passphrase := []byte("correct-horse-battery-staple")

	// 1. Create the archive and add a login
	if err := vault.Create(ctx, passphrase); err != nil {
		log.Fatal(err)
	}
	_, err = vault.AddFromTemplate("login", "GitHub", map[string]string{
		"username": "octocat",
		"password": "hunter2",
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := vault.Close(ctx); err != nil {
		log.Fatal(err)
	}

	// 2. Reopen it
	if _, err := vault.Open(ctx, passphrase); err != nil {
		log.Fatal(err)
	}
	defer vault.Close(ctx)

	list, err := vault.List()
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range list {
		user, _ := c.Field("username")
		fmt.Printf("%s: %s\n", c.Name, user.Value)
	}
	// Output:
	// GitHub: octocat
}
