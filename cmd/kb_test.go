package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKBMatch(t *testing.T) {
	dir := t.TempDir()
	kbPath := filepath.Join(dir, "solutions.json")
	if err := os.WriteFile(kbPath, []byte(`{"reset password": "Use the reset link on the login page."}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.json5")
	cfgBody := `{
  // operator chat
  escalation: { channel_id: "-100" },
  knowledge: { path: "` + filepath.ToSlash(kbPath) + `" }
}`
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "kb", "match", "how", "to", "reset", "password"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		cfgFile = ""
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "question: reset password") || !strings.Contains(got, "match") {
		t.Fatalf("output = %q", got)
	}
}
