// AngelaMos | 2026
// main.go

package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/auramanager/aura-api/internal/auth"
)

// keygen writes the ES256 signing pair and prints a fresh
// OAUTH_ENCRYPTION_KEY for sealing platform tokens.
func main() {
	dir := flag.String("dir", "keys", "directory for the PEM files")
	flag.Parse()

	if err := run(*dir); err != nil {
		slog.Error("keygen failed", "error", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")

	if err := auth.GenerateKeyPair(privatePath, publicPath); err != nil {
		return err
	}

	sealKey := make([]byte, 32)
	if _, err := rand.Read(sealKey); err != nil {
		return fmt.Errorf("generate sealing key: %w", err)
	}

	fmt.Printf("JWT_PRIVATE_KEY_PATH=%s\n", privatePath)
	fmt.Printf("JWT_PUBLIC_KEY_PATH=%s\n", publicPath)
	fmt.Printf("OAUTH_ENCRYPTION_KEY=%s\n", base64.StdEncoding.EncodeToString(sealKey))
	return nil
}
