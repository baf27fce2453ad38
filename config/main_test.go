package config

import (
	"fmt"
	"os"
	"testing"
)

// TestMain refuses to run the config tests against a production environment
func TestMain(m *testing.M) {
	switch env := os.Getenv("GO_ENV"); env {
	case "":
		_ = os.Setenv("GO_ENV", "test")
	case "production":
		fmt.Fprintf(os.Stderr, "config tests must not run with GO_ENV=%q, use GO_ENV=test\n", env)
		os.Exit(1)
	}

	os.Exit(m.Run())
}
